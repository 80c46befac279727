package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewTicket(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	t.Run("defaults status, priority and timestamps", func(t *testing.T) {
		ticket := NewTicket("t-1", TicketInput{Title: "  Printer down  "}, now)

		assert.Equal(t, "t-1", ticket.ID)
		assert.Equal(t, "Printer down", ticket.Title)
		assert.Equal(t, StatusOpen, ticket.Status)
		assert.Equal(t, PriorityMedium, ticket.Priority)
		assert.Equal(t, now, ticket.CreatedAt)
		assert.Equal(t, now, ticket.UpdatedAt)
		assert.Equal(t, now, ticket.DateTime)
		assert.Nil(t, ticket.ResolvedAt)
	})

	t.Run("keeps an explicit event time", func(t *testing.T) {
		event := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		ticket := NewTicket("t-2", TicketInput{Title: "VPN", DateTime: &event}, now)

		assert.Equal(t, event, ticket.DateTime)
		assert.Equal(t, now, ticket.CreatedAt)
	})
}

func TestTicketInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   TicketInput
		wantErr string
	}{
		{name: "valid", input: TicketInput{Title: "Mouse"}},
		{name: "missing title", input: TicketInput{Title: "   "}, wantErr: "title"},
		{name: "unknown priority", input: TicketInput{Title: "Mouse", Priority: "Urgent"}, wantErr: "priority"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.input.Normalize().Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.wantErr, fe.Field)
		})
	}
}

func TestTicketPatchApply(t *testing.T) {
	created := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	later := created.Add(2 * time.Hour)
	base := NewTicket("t-1", TicketInput{Title: "Printer down"}, created)

	t.Run("resolving sets resolved_at", func(t *testing.T) {
		status := StatusResolved
		got := TicketPatch{Status: &status, Solution: strPtr("Replaced toner")}.Apply(base, later)

		require.NotNil(t, got.ResolvedAt)
		assert.Equal(t, later, *got.ResolvedAt)
		assert.Equal(t, later, got.UpdatedAt)
		assert.Equal(t, "Replaced toner", got.Solution)
	})

	t.Run("reopening clears resolved_at", func(t *testing.T) {
		resolved := StatusResolved
		open := StatusOpen
		r := TicketPatch{Status: &resolved}.Apply(base, later)
		got := TicketPatch{Status: &open}.Apply(r, later.Add(time.Hour))

		assert.Equal(t, StatusOpen, got.Status)
		assert.Nil(t, got.ResolvedAt)
	})

	t.Run("in progress clears resolved_at", func(t *testing.T) {
		resolved := StatusResolved
		progress := StatusInProgress
		r := TicketPatch{Status: &resolved}.Apply(base, later)
		got := TicketPatch{Status: &progress}.Apply(r, later)

		assert.Nil(t, got.ResolvedAt)
	})

	t.Run("no status leaves resolved_at untouched", func(t *testing.T) {
		resolved := StatusResolved
		r := TicketPatch{Status: &resolved}.Apply(base, later)
		got := TicketPatch{Title: strPtr("Printer fixed")}.Apply(r, later.Add(time.Hour))

		require.NotNil(t, got.ResolvedAt)
		assert.Equal(t, later, *got.ResolvedAt)
		assert.Equal(t, StatusResolved, got.Status)
		assert.Equal(t, "Printer fixed", got.Title)
	})

	t.Run("nil fields keep values", func(t *testing.T) {
		withTech := base
		withTech.Technician = "Ana"
		got := TicketPatch{}.Apply(withTech, later)

		assert.Equal(t, "Ana", got.Technician)
		assert.Equal(t, base.Title, got.Title)
		assert.Equal(t, later, got.UpdatedAt)
	})
}

func TestTicketPatchValidate(t *testing.T) {
	bad := TicketStatus("Fechado")
	assert.Error(t, TicketPatch{Status: &bad}.Validate())

	badPriority := TicketPriority("Urgente")
	assert.Error(t, TicketPatch{Priority: &badPriority}.Validate())

	assert.Error(t, TicketPatch{Title: strPtr(" ")}.Validate())

	ok := StatusInProgress
	assert.NoError(t, TicketPatch{Status: &ok}.Validate())
	assert.True(t, TicketPatch{}.IsEmpty())
	assert.False(t, TicketPatch{Status: &ok}.IsEmpty())
}

func TestCountTickets(t *testing.T) {
	tickets := []Ticket{
		{Status: StatusOpen},
		{Status: StatusOpen},
		{Status: StatusInProgress},
		{Status: StatusResolved},
	}

	stats := CountTickets(tickets)
	assert.Equal(t, TicketStats{Total: 4, Open: 2, InProgress: 1, Resolved: 1}, stats)
	assert.Equal(t, TicketStats{}, CountTickets(nil))
}

func TestFilterTickets(t *testing.T) {
	tickets := []Ticket{
		{ID: "1", Title: "Impressora parada", Technician: "Ana", Status: StatusOpen},
		{ID: "2", Title: "VPN", Description: "Sem acesso à rede", UserName: "João", Status: StatusResolved},
		{ID: "3", Title: "Email", Technician: "Bruno", UserName: "MARIA", Status: StatusOpen},
	}

	ids := func(ts []Ticket) []string {
		out := []string{}
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	t.Run("empty search and status returns all", func(t *testing.T) {
		assert.Equal(t, []string{"1", "2", "3"}, ids(FilterTickets(tickets, "", "")))
	})

	t.Run("search is case-insensitive across fields", func(t *testing.T) {
		assert.Equal(t, []string{"1"}, ids(FilterTickets(tickets, "IMPRESSORA", "")))
		assert.Equal(t, []string{"2"}, ids(FilterTickets(tickets, "rede", "")))
		assert.Equal(t, []string{"3"}, ids(FilterTickets(tickets, "maria", "")))
		assert.Equal(t, []string{"2"}, ids(FilterTickets(tickets, "joão", "")))
	})

	t.Run("status narrows results", func(t *testing.T) {
		assert.Equal(t, []string{"1", "3"}, ids(FilterTickets(tickets, "", StatusOpen)))
		assert.Equal(t, []string{"3"}, ids(FilterTickets(tickets, "bruno", StatusOpen)))
		assert.Empty(t, FilterTickets(tickets, "bruno", StatusResolved))
	})
}
