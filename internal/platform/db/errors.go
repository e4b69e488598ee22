package db

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ErrInvalidClinic is returned for clinic identifiers that cannot name a schema.
var ErrInvalidClinic = apperr.Validation("invalid clinic identifier", "clinic_id")

// Classify translates a pgx error into the application taxonomy. Errors that
// are already classified pass through unchanged; errors with no better
// classification are returned as-is.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return apperr.Wrap(apperr.KindConflict, err, op)
		case pgErr.Code == "42P01" || pgErr.Code == "3F000":
			// Unknown relation or schema: the clinic has not been provisioned.
			return apperr.Wrap(apperr.KindNotFound, err, op)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08",
			pgErr.Code == "53300", pgErr.Code == "57P01", pgErr.Code == "57P03":
			return apperr.BackendUnavailable(err)
		}
		return err
	}

	if isConnectivity(err) {
		return apperr.BackendUnavailable(err)
	}
	return err
}

func isConnectivity(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Nothing reached the server, so the statement never ran.
	return pgconn.SafeToRetry(err)
}
