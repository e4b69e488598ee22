package staff

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const accountCols = `id, email, name, role, active, password_hash, last_login_at, created_at, updated_at`

func (r *accountRepoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	var role string
	err := row.Scan(&a.ID, &a.Email, &a.Name, &role, &a.Active, &a.PasswordHash,
		&a.LastLoginAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role, _ = auth.ParseRole(role)
	return &a, nil
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff_account (id, email, name, role, active, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		a.ID, a.Email, a.Name, string(a.Role), a.Active, a.PasswordHash,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return db.Classify(err, "create staff account")
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM staff_account WHERE id = $1`, id))
	return a, db.Classify(err, "staff account not found")
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM staff_account WHERE lower(email) = lower($1)`, email))
	return a, db.Classify(err, "staff account not found")
}

func (r *accountRepoPG) List(ctx context.Context) ([]*Account, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+accountCols+` FROM staff_account ORDER BY lower(name), lower(email)`)
	if err != nil {
		return nil, db.Classify(err, "list staff accounts")
	}
	defer rows.Close()
	var items []*Account
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, db.Classify(err, "list staff accounts")
		}
		items = append(items, a)
	}
	return items, db.Classify(rows.Err(), "list staff accounts")
}

func (r *accountRepoPG) Update(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE staff_account SET name=$2, role=$3, active=$4, password_hash=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Name, string(a.Role), a.Active, a.PasswordHash,
	).Scan(&a.UpdatedAt)
	return db.Classify(err, "staff account not found")
}

func (r *accountRepoPG) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE staff_account SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return db.Classify(err, "record login")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("staff account")
	}
	return nil
}
