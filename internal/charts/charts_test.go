package charts

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchayre/logsti/internal/models"
)

func ticket(tech string, status models.TicketStatus, priority models.TicketPriority, at time.Time) models.Ticket {
	return models.Ticket{Technician: tech, Status: status, Priority: priority, DateTime: at}
}

func sample() []models.Ticket {
	return []models.Ticket{
		ticket("Bruno", models.StatusOpen, models.PriorityHigh, time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)),
		ticket("Ana", models.StatusResolved, models.PriorityLow, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		ticket("Bruno", models.StatusOpen, models.PriorityHigh, time.Date(2023, 12, 9, 0, 0, 0, 0, time.UTC)),
		ticket("Ana", models.StatusInProgress, models.PriorityHigh, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)),
	}
}

func TestAggregate(t *testing.T) {
	res := Aggregate(sample(), time.UTC)
	assert.False(t, res.Empty)

	assert.Equal(t, []Bucket{{"Bruno", 2}, {"Ana", 2}}, res.ByTechnician)
	assert.Equal(t, []Bucket{{"Aberto", 2}, {"Resolvido", 1}, {"Em Andamento", 1}}, res.ByStatus)
	assert.Equal(t, []Bucket{{"Alta", 3}, {"Baixa", 1}}, res.ByPriority)

	t.Run("months sort chronologically", func(t *testing.T) {
		assert.Equal(t, []Bucket{{"12/2023", 1}, {"3/2024", 2}, {"11/2024", 1}}, res.ByMonth)
	})
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, nil)
	assert.True(t, res.Empty)
	assert.Empty(t, res.ByTechnician)
	assert.NotNil(t, res.ByMonth)
}

func TestAggregateUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// first hours of April UTC are still March at UTC-3
	res := Aggregate([]models.Ticket{ticket("Ana", models.StatusOpen, models.PriorityLow, time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC))}, loc)
	assert.Equal(t, []Bucket{{"3/2024", 1}}, res.ByMonth)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Observe(Aggregate(sample(), time.UTC))

	expected := `
# HELP logsti_tickets_by_status Number of tickets per status
# TYPE logsti_tickets_by_status gauge
logsti_tickets_by_status{status="Aberto"} 2
logsti_tickets_by_status{status="Em Andamento"} 1
logsti_tickets_by_status{status="Resolvido"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "logsti_tickets_by_status"))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.byPriority.WithLabelValues("Crítica")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.byPriority.WithLabelValues("Alta")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.total))

	m.Observe(Aggregate(nil, time.UTC))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.byStatus.WithLabelValues("Aberto")))
}
