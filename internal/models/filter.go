package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// FilterTickets applies the dashboard search box and status selector.
// search matches case-insensitively as a substring of title, description,
// technician or user name; an empty status matches every ticket. The
// input order is preserved.
func FilterTickets(tickets []Ticket, search string, status TicketStatus) []Ticket {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(search))
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		if status != "" && t.Status != status {
			continue
		}
		if needle != "" && !matchesSearch(fold, t, needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesSearch(fold cases.Caser, t Ticket, needle string) bool {
	for _, field := range []string{t.Title, t.Description, t.Technician, t.UserName} {
		if strings.Contains(fold.String(field), needle) {
			return true
		}
	}
	return false
}
