package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/cache"
	"github.com/tchayre/logsti/internal/models"
)

const backupKeyPrefix = "backup_"

// Period identifies one backed up month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Backup keeps monthly snapshots of the exported row projection.
type Backup struct {
	store  cache.Store
	loc    *time.Location
	log    zerolog.Logger
	prefix string
}

// NewBackup creates a Backup over store.
func NewBackup(store cache.Store, opts ...Option) *Backup {
	o := buildOptions(opts)
	return &Backup{store: store, loc: o.loc, log: o.log, prefix: o.prefix}
}

// Key is the store key of a month's snapshot.
func (b *Backup) Key(month, year int) string {
	return b.prefix + backupKeyPrefix + strconv.Itoa(month) + "_" + strconv.Itoa(year)
}

// SnapshotBackup stores the tickets of month/year, overwriting any earlier
// snapshot. A month without tickets writes nothing and is not an error.
func (b *Backup) SnapshotBackup(ctx context.Context, tickets []models.Ticket, month, year int) error {
	r := MonthRange(month, year)
	if err := r.Validate(); err != nil {
		return err
	}
	matched := Filter(tickets, r, b.loc)
	if len(matched) == 0 {
		b.log.Debug().Int("month", month).Int("year", year).Msg("no tickets to back up")
		return nil
	}
	data, err := json.Marshal(Rows(matched, b.loc))
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	key := b.Key(month, year)
	if err := b.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("store backup %s: %w", key, err)
	}
	b.log.Info().Str("key", key).Int("rows", len(matched)).Msg("backup saved")
	return nil
}

// Load returns the snapshot of month/year; ok is false when none exists.
func (b *Backup) Load(ctx context.Context, month, year int) ([]Row, bool, error) {
	key := b.Key(month, year)
	data, ok, err := b.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false, fmt.Errorf("decode backup %s: %w", key, err)
	}
	return rows, true, nil
}

// Periods lists the stored snapshots, oldest first.
func (b *Backup) Periods(ctx context.Context) ([]Period, error) {
	keys, err := b.store.Keys(ctx, b.prefix+backupKeyPrefix)
	if err != nil {
		return nil, err
	}
	periods := []Period{}
	for _, key := range keys {
		p, ok := parseKey(strings.TrimPrefix(key, b.prefix+backupKeyPrefix))
		if ok {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].Year != periods[j].Year {
			return periods[i].Year < periods[j].Year
		}
		return periods[i].Month < periods[j].Month
	})
	return periods, nil
}

func parseKey(rest string) (Period, bool) {
	m, y, found := strings.Cut(rest, "_")
	if !found {
		return Period{}, false
	}
	month, err1 := strconv.Atoi(m)
	year, err2 := strconv.Atoi(y)
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return Period{}, false
	}
	return Period{Month: month, Year: year}, true
}
