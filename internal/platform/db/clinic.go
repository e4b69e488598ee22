package db

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	ClinicIDKey contextKey = "clinic_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// ClinicHeader selects the clinic for requests that carry no session.
const ClinicHeader = "X-Clinic-ID"

// ClinicQueryParam carries the clinic on patient links, which have neither a
// session nor a header.
const ClinicQueryParam = "clinic_id"

var clinicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SchemaName returns the PostgreSQL schema holding a clinic's data.
func SchemaName(clinicID string) string {
	return "clinic_" + clinicID
}

// ValidClinicID reports whether id is safe to interpolate into a schema name.
func ValidClinicID(id string) bool {
	return clinicIDPattern.MatchString(id)
}

// ClinicMiddleware acquires a connection per request, points its search_path
// at the clinic schema and stores it in the request context.
func ClinicMiddleware(pool *pgxpool.Pool, defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clinicID := extractClinicID(c, defaultClinic)

			ctx, release, err := WithClinic(c.Request().Context(), pool, clinicID)
			if err != nil {
				return err
			}
			defer release()

			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

// WithClinic acquires a pooled connection scoped to the clinic schema and
// returns a context carrying it. The caller must invoke release when done.
func WithClinic(ctx context.Context, pool *pgxpool.Pool, clinicID string) (context.Context, func(), error) {
	if !ValidClinicID(clinicID) {
		return ctx, func() {}, fmt.Errorf("invalid clinic identifier %q: %w", clinicID, ErrInvalidClinic)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, func() {}, Classify(err, "acquire connection")
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", SchemaName(clinicID))); err != nil {
		conn.Release()
		return ctx, func() {}, Classify(err, "set clinic search_path")
	}

	ctx = context.WithValue(ctx, ClinicIDKey, clinicID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

func extractClinicID(c echo.Context, defaultClinic string) string {
	// 1. Clinic claim of the staff session (set by auth middleware)
	if id, ok := c.Get("jwt_clinic_id").(string); ok && id != "" {
		return id
	}

	// 2. Explicit header
	if id := c.Request().Header.Get(ClinicHeader); id != "" {
		return id
	}

	// 3. Query parameter
	if id := c.QueryParam(ClinicQueryParam); id != "" {
		return id
	}

	return defaultClinic
}

// ConnFromContext retrieves the clinic-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// ClinicFromContext retrieves the clinic ID from context.
func ClinicFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ClinicIDKey).(string)
	return id
}

// CreateClinicSchema creates the schema for a clinic and runs all migrations
// from fsys against it. A nil fsys skips migrations.
func CreateClinicSchema(ctx context.Context, pool *pgxpool.Pool, clinicID string, fsys fs.FS) error {
	if !ValidClinicID(clinicID) {
		return fmt.Errorf("invalid clinic identifier: %s", clinicID)
	}

	schema := SchemaName(clinicID)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if fsys != nil {
		migrator := NewMigrator(pool, fsys)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
