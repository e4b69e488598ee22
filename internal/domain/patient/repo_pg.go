package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const patientCols = `id, name, age, phone, email, condition, treatment_notes,
	created_by, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Phone, &p.Email, &p.Condition, &p.TreatmentNotes,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, name, age, phone, email, condition, treatment_notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Phone, p.Email, p.Condition, p.TreatmentNotes, p.CreatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "create patient")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	return p, db.Classify(err, "patient not found")
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET name=$2, age=$3, phone=$4, email=$5, condition=$6,
			treatment_notes=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING created_by, created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Phone, p.Email, p.Condition, p.TreatmentNotes,
	).Scan(&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, "patient not found")
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, "delete patient")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

// escapeLike makes a user query literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *patientRepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	q := r.conn(ctx)
	where := ""
	args := []interface{}{}
	if query = strings.TrimSpace(query); query != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1`
		args = append(args, "%"+escapeLike(query)+"%")
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(err, "count patients")
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patient`+where+
		fmt.Sprintf(` ORDER BY lower(name), created_at LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, db.Classify(err, "search patients")
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, db.Classify(err, "search patients")
		}
		items = append(items, p)
	}
	return items, total, db.Classify(rows.Err(), "search patients")
}
