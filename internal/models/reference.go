package models

import (
	"fmt"
	"strings"
	"time"
)

// ReferenceKind identifies one of the soft-deletable lookup lists.
type ReferenceKind string

const (
	KindTechnician ReferenceKind = "technicians"
	KindSector     ReferenceKind = "sectors"
	KindCategory   ReferenceKind = "categories"
	KindUser       ReferenceKind = "users"
)

// ReferenceKinds lists every reference kind.
var ReferenceKinds = []ReferenceKind{KindTechnician, KindSector, KindCategory, KindUser}

// TicketsTable is the storage location of tickets, used as realtime topic.
const TicketsTable = "tickets"

// ParseReferenceKind maps a table name to its kind.
func ParseReferenceKind(s string) (ReferenceKind, error) {
	k := ReferenceKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown reference kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k ReferenceKind) Valid() bool {
	switch k {
	case KindTechnician, KindSector, KindCategory, KindUser:
		return true
	}
	return false
}

// Table returns the storage table of the kind.
func (k ReferenceKind) Table() string { return string(k) }

// HasEmail reports whether records of this kind carry an email.
func (k ReferenceKind) HasEmail() bool { return k == KindTechnician || k == KindUser }

// HasSector reports whether records of this kind carry a sector name.
func (k ReferenceKind) HasSector() bool { return k == KindUser }

// Singular returns a human label used in error messages.
func (k ReferenceKind) Singular() string {
	switch k {
	case KindTechnician:
		return "technician"
	case KindSector:
		return "sector"
	case KindCategory:
		return "category"
	case KindUser:
		return "user"
	}
	return string(k)
}

// Reference is a technician, sector, category or user. Users are ticket
// submitters, not authentication principals. Email is only kept for
// technicians and users, Sector only for users.
type Reference struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Sector    *string   `json:"sector,omitempty" db:"sector"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EntityID returns the reference identifier.
func (r Reference) EntityID() string { return r.ID }

// ReferenceInput holds the creatable fields of a reference.
type ReferenceInput struct {
	Name   string  `json:"name"`
	Email  *string `json:"email,omitempty"`
	Sector *string `json:"sector,omitempty"`
}

// Normalize trims fields and drops the ones kind does not store. Empty
// optional strings become nil.
func (in ReferenceInput) Normalize(kind ReferenceKind) ReferenceInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = trimOptional(in.Email)
	in.Sector = trimOptional(in.Sector)
	if !kind.HasEmail() {
		in.Email = nil
	}
	if !kind.HasSector() {
		in.Sector = nil
	}
	return in
}

// Validate checks a normalized input.
func (in ReferenceInput) Validate() error {
	if in.Name == "" {
		return &FieldError{Field: "name", Message: "name is required"}
	}
	if in.Email != nil && !strings.Contains(*in.Email, "@") {
		return &FieldError{Field: "email", Message: "invalid email " + *in.Email}
	}
	return nil
}

// NewReference builds an active reference from a normalized input.
func NewReference(id string, in ReferenceInput, now time.Time) Reference {
	return Reference{
		ID:        id,
		Name:      in.Name,
		Email:     in.Email,
		Sector:    in.Sector,
		Active:    true,
		CreatedAt: now,
	}
}

// ReferencePatch is a partial reference update; nil fields are untouched.
type ReferencePatch struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Sector *string `json:"sector,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

// Normalize trims fields and drops the ones kind does not store. Unlike
// inputs, an empty Email or Sector is kept so it can clear the value.
func (p ReferencePatch) Normalize(kind ReferenceKind) ReferencePatch {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		p.Email = &email
	}
	if p.Sector != nil {
		sector := strings.TrimSpace(*p.Sector)
		p.Sector = &sector
	}
	if !kind.HasEmail() {
		p.Email = nil
	}
	if !kind.HasSector() {
		p.Sector = nil
	}
	return p
}

// Validate checks a normalized patch.
func (p ReferencePatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return &FieldError{Field: "name", Message: "name cannot be empty"}
	}
	if p.Email != nil && *p.Email != "" && !strings.Contains(*p.Email, "@") {
		return &FieldError{Field: "email", Message: "invalid email " + *p.Email}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p ReferencePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Sector == nil && p.Active == nil
}

// Apply merges the patch into r.
func (p ReferencePatch) Apply(r Reference) Reference {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Email != nil {
		r.Email = nilIfEmpty(*p.Email)
	}
	if p.Sector != nil {
		r.Sector = nilIfEmpty(*p.Sector)
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	return r
}

// ActiveNames returns the names of active references, in input order, as
// offered by selection lists.
func ActiveNames(refs []Reference) []string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.Active {
			names = append(names, r.Name)
		}
	}
	return names
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	return nilIfEmpty(strings.TrimSpace(*s))
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
