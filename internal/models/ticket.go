package models

import (
	"strings"
	"time"
)

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "Aberto"
	StatusInProgress TicketStatus = "Em Andamento"
	StatusResolved   TicketStatus = "Resolvido"
)

// TicketStatuses lists every accepted status in display order.
var TicketStatuses = []TicketStatus{StatusOpen, StatusInProgress, StatusResolved}

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TicketPriority is the urgency assigned to a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "Baixa"
	PriorityMedium   TicketPriority = "Média"
	PriorityHigh     TicketPriority = "Alta"
	PriorityCritical TicketPriority = "Crítica"
)

// TicketPriorities lists every accepted priority from lowest to highest.
var TicketPriorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	for _, known := range TicketPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Ticket represents a support incident. Technician, sector, user and
// category are stored by name, not by reference, so later renames or
// deactivations of those entities never touch historical tickets.
type Ticket struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Solution    string         `json:"solution" db:"solution"`
	Technician  string         `json:"technician" db:"technician"`
	Sector      string         `json:"sector" db:"sector"`
	UserName    string         `json:"user_name" db:"user_name"`
	Category    string         `json:"category" db:"category"`
	Status      TicketStatus   `json:"status" db:"status"`
	Priority    TicketPriority `json:"priority" db:"priority"`
	DateTime    time.Time      `json:"date_time" db:"date_time"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	ResolvedAt  *time.Time     `json:"resolved_at" db:"resolved_at"`
}

// EntityID returns the ticket identifier.
func (t Ticket) EntityID() string { return t.ID }

// IsResolved reports whether the ticket is in the resolved state.
func (t Ticket) IsResolved() bool { return t.Status == StatusResolved }

// TicketInput holds the creatable subset of ticket fields. Identifier,
// status and timestamps are assigned by the backend.
type TicketInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Solution    string         `json:"solution"`
	Technician  string         `json:"technician"`
	Sector      string         `json:"sector"`
	UserName    string         `json:"user_name"`
	Category    string         `json:"category"`
	Priority    TicketPriority `json:"priority"`
	DateTime    *time.Time     `json:"date_time,omitempty"`
}

// Normalize trims text fields and applies the default priority.
func (in TicketInput) Normalize() TicketInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Solution = strings.TrimSpace(in.Solution)
	in.Technician = strings.TrimSpace(in.Technician)
	in.Sector = strings.TrimSpace(in.Sector)
	in.UserName = strings.TrimSpace(in.UserName)
	in.Category = strings.TrimSpace(in.Category)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	return in
}

// Validate checks a normalized input.
func (in TicketInput) Validate() error {
	if in.Title == "" {
		return &FieldError{Field: "title", Message: "title is required"}
	}
	if !in.Priority.Valid() {
		return &FieldError{Field: "priority", Message: "unknown priority " + string(in.Priority)}
	}
	return nil
}

// NewTicket builds the ticket a backend stores for in, with status Open
// and every timestamp taken from now.
func NewTicket(id string, in TicketInput, now time.Time) Ticket {
	in = in.Normalize()
	dateTime := now
	if in.DateTime != nil && !in.DateTime.IsZero() {
		dateTime = *in.DateTime
	}
	return Ticket{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Solution:    in.Solution,
		Technician:  in.Technician,
		Sector:      in.Sector,
		UserName:    in.UserName,
		Category:    in.Category,
		Status:      StatusOpen,
		Priority:    in.Priority,
		DateTime:    dateTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TicketPatch is a partial ticket update. Nil fields mean "no change" and
// are never sent to or written by the backend.
type TicketPatch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Solution    *string         `json:"solution,omitempty"`
	Technician  *string         `json:"technician,omitempty"`
	Sector      *string         `json:"sector,omitempty"`
	UserName    *string         `json:"user_name,omitempty"`
	Category    *string         `json:"category,omitempty"`
	Status      *TicketStatus   `json:"status,omitempty"`
	Priority    *TicketPriority `json:"priority,omitempty"`
	DateTime    *time.Time      `json:"date_time,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TicketPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Solution == nil &&
		p.Technician == nil && p.Sector == nil && p.UserName == nil &&
		p.Category == nil && p.Status == nil && p.Priority == nil && p.DateTime == nil
}

// Validate checks the enumerated fields of the patch.
func (p TicketPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return &FieldError{Field: "title", Message: "title cannot be empty"}
	}
	if p.Status != nil && !p.Status.Valid() {
		return &FieldError{Field: "status", Message: "unknown status " + string(*p.Status)}
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return &FieldError{Field: "priority", Message: "unknown priority " + string(*p.Priority)}
	}
	return nil
}

// Apply merges the patch into t and stamps the update time. A status
// change to Resolved sets ResolvedAt to now; any other status clears it.
func (p TicketPatch) Apply(t Ticket, now time.Time) Ticket {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Solution != nil {
		t.Solution = strings.TrimSpace(*p.Solution)
	}
	if p.Technician != nil {
		t.Technician = strings.TrimSpace(*p.Technician)
	}
	if p.Sector != nil {
		t.Sector = strings.TrimSpace(*p.Sector)
	}
	if p.UserName != nil {
		t.UserName = strings.TrimSpace(*p.UserName)
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DateTime != nil && !p.DateTime.IsZero() {
		t.DateTime = *p.DateTime
	}
	if p.Status != nil {
		t.Status = *p.Status
		if t.Status == StatusResolved {
			resolved := now
			t.ResolvedAt = &resolved
		} else {
			t.ResolvedAt = nil
		}
	}
	t.UpdatedAt = now
	return t
}

// TicketStats counts tickets per status for the dashboard header.
type TicketStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// CountTickets computes TicketStats over tickets.
func CountTickets(tickets []Ticket) TicketStats {
	stats := TicketStats{Total: len(tickets)}
	for _, t := range tickets {
		switch t.Status {
		case StatusOpen:
			stats.Open++
		case StatusInProgress:
			stats.InProgress++
		case StatusResolved:
			stats.Resolved++
		}
	}
	return stats
}
