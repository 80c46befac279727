// Package charts groups tickets for the dashboard charts.
package charts

import (
	"fmt"
	"sort"
	"time"

	"github.com/tchayre/logsti/internal/models"
)

// Bucket is one bar or slice of a chart.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Result holds the four groupings. Empty is set when there were no
// tickets, in which case every grouping is empty.
type Result struct {
	Empty        bool     `json:"empty"`
	ByTechnician []Bucket `json:"by_technician"`
	ByStatus     []Bucket `json:"by_status"`
	ByPriority   []Bucket `json:"by_priority"`
	ByMonth      []Bucket `json:"by_month"`
}

// counter counts labels in first-seen order.
type counter struct {
	index   map[string]int
	buckets []Bucket
}

func newCounter() *counter {
	return &counter{index: map[string]int{}, buckets: []Bucket{}}
}

func (c *counter) add(label string) {
	if i, ok := c.index[label]; ok {
		c.buckets[i].Count++
		return
	}
	c.index[label] = len(c.buckets)
	c.buckets = append(c.buckets, Bucket{Label: label, Count: 1})
}

type monthKey struct{ year, month int }

// Aggregate groups tickets by technician, status, priority and the
// "month/year" of their event time in loc. Months sort chronologically;
// the other groupings keep the order labels first appear in.
func Aggregate(tickets []models.Ticket, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	res := Result{
		Empty:        len(tickets) == 0,
		ByTechnician: []Bucket{},
		ByStatus:     []Bucket{},
		ByPriority:   []Bucket{},
		ByMonth:      []Bucket{},
	}
	if res.Empty {
		return res
	}

	tech, status, priority := newCounter(), newCounter(), newCounter()
	months := map[monthKey]int{}
	for _, t := range tickets {
		tech.add(t.Technician)
		status.add(string(t.Status))
		priority.add(string(t.Priority))
		local := t.DateTime.In(loc)
		months[monthKey{local.Year(), int(local.Month())}]++
	}

	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})
	for _, k := range keys {
		res.ByMonth = append(res.ByMonth, Bucket{Label: fmt.Sprintf("%d/%d", k.month, k.year), Count: months[k]})
	}

	res.ByTechnician = tech.buckets
	res.ByStatus = status.buckets
	res.ByPriority = priority.buckets
	return res
}
