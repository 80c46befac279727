package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/tchayre/logsti/internal/database"
	"github.com/tchayre/logsti/internal/models"
)

// SQLReferenceRepository implements ReferenceRepository for one table.
type SQLReferenceRepository struct {
	db   *sqlx.DB
	kind models.ReferenceKind
	opts options
}

// NewSQLReferenceRepository creates a repository for kind on db.
func NewSQLReferenceRepository(db *sqlx.DB, kind models.ReferenceKind, opts ...Option) *SQLReferenceRepository {
	return &SQLReferenceRepository{db: db, kind: kind, opts: newOptions(opts)}
}

// NewSQLSet builds the full repository set on db.
func NewSQLSet(db *sqlx.DB, opts ...Option) Set {
	set := Set{
		Tickets:    NewSQLTicketRepository(db, opts...),
		References: map[models.ReferenceKind]ReferenceRepository{},
	}
	for _, kind := range models.ReferenceKinds {
		set.References[kind] = NewSQLReferenceRepository(db, kind, opts...)
	}
	return set
}

func (r *SQLReferenceRepository) Kind() models.ReferenceKind { return r.kind }

func (r *SQLReferenceRepository) columns() []string {
	cols := []string{"id", "name"}
	if r.kind.HasEmail() {
		cols = append(cols, "email")
	}
	if r.kind.HasSector() {
		cols = append(cols, "sector")
	}
	return append(cols, "active", "created_at")
}

func (r *SQLReferenceRepository) selectFrom() string {
	return `SELECT ` + strings.Join(r.columns(), ", ") + ` FROM ` + r.kind.Table()
}

func (r *SQLReferenceRepository) ListActive(ctx context.Context) ([]models.Reference, error) {
	refs := []models.Reference{}
	query := r.db.Rebind(r.selectFrom() + ` WHERE active = ? ORDER BY name ASC`)
	if err := r.db.SelectContext(ctx, &refs, query, true); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.kind, err)
	}
	return refs, nil
}

func (r *SQLReferenceRepository) Get(ctx context.Context, id string) (models.Reference, error) {
	var ref models.Reference
	query := r.db.Rebind(r.selectFrom() + ` WHERE id = ?`)
	if err := r.db.GetContext(ctx, &ref, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reference{}, ErrNotFound
		}
		return models.Reference{}, fmt.Errorf("get %s %s: %w", r.kind.Singular(), id, err)
	}
	return ref, nil
}

// nameTaken reports whether an active record other than exceptID uses name.
func (r *SQLReferenceRepository) nameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM ` + r.kind.Table() +
		` WHERE active = ? AND LOWER(name) = LOWER(?) AND id <> ?`)
	if err := r.db.GetContext(ctx, &count, query, true, name, exceptID); err != nil {
		return false, fmt.Errorf("check %s name: %w", r.kind.Singular(), err)
	}
	return count > 0, nil
}

func (r *SQLReferenceRepository) Create(ctx context.Context, in models.ReferenceInput) (models.Reference, error) {
	in = in.Normalize(r.kind)
	if err := in.Validate(); err != nil {
		return models.Reference{}, err
	}
	taken, err := r.nameTaken(ctx, in.Name, "")
	if err != nil {
		return models.Reference{}, err
	}
	if taken {
		return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), in.Name, ErrDuplicateName)
	}

	ref := models.NewReference(r.opts.newID(), in, r.opts.clock())
	cols := r.columns()
	query := `INSERT INTO ` + r.kind.Table() + ` (` + strings.Join(cols, ", ") +
		`) VALUES (:` + strings.Join(cols, ", :") + `)`
	if _, err := r.db.NamedExecContext(ctx, query, ref); err != nil {
		if database.IsUniqueViolation(err) {
			// a concurrent create won between the check and the insert
			return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), in.Name, ErrDuplicateName)
		}
		return models.Reference{}, fmt.Errorf("insert %s: %w", r.kind.Singular(), err)
	}
	return ref, nil
}

func (r *SQLReferenceRepository) Update(ctx context.Context, id string, patch models.ReferencePatch) (models.Reference, error) {
	patch = patch.Normalize(r.kind)
	if err := patch.Validate(); err != nil {
		return models.Reference{}, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return models.Reference{}, err
	}
	if patch.IsEmpty() {
		return current, nil
	}
	next := patch.Apply(current)
	if next.Active && (patch.Name != nil || patch.Active != nil) {
		taken, err := r.nameTaken(ctx, next.Name, id)
		if err != nil {
			return models.Reference{}, err
		}
		if taken {
			return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), next.Name, ErrDuplicateName)
		}
	}

	sets := []string{}
	args := map[string]interface{}{"id": id}
	if patch.Name != nil {
		sets = append(sets, "name = :name")
		args["name"] = next.Name
	}
	if patch.Email != nil {
		sets = append(sets, "email = :email")
		args["email"] = next.Email
	}
	if patch.Sector != nil {
		sets = append(sets, "sector = :sector")
		args["sector"] = next.Sector
	}
	if patch.Active != nil {
		sets = append(sets, "active = :active")
		args["active"] = next.Active
	}
	query := `UPDATE ` + r.kind.Table() + ` SET ` + strings.Join(sets, ", ") + ` WHERE id = :id`
	named, bound, err := sqlx.Named(query, args)
	if err != nil {
		return models.Reference{}, fmt.Errorf("bind %s update: %w", r.kind.Singular(), err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(named), bound...); err != nil {
		if database.IsUniqueViolation(err) {
			return models.Reference{}, fmt.Errorf("%s %q: %w", r.kind.Singular(), next.Name, ErrDuplicateName)
		}
		return models.Reference{}, fmt.Errorf("update %s %s: %w", r.kind.Singular(), id, err)
	}
	return next, nil
}

// Deactivate sets active=false. Tickets that reference the name are untouched.
func (r *SQLReferenceRepository) Deactivate(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE ` + r.kind.Table() + ` SET active = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, false, id)
	if err != nil {
		return fmt.Errorf("deactivate %s %s: %w", r.kind.Singular(), id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the value is unchanged.
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return nil
}
