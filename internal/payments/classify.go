package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
)

// ErrCardinality is a sentinel a resolver returns when it observes more rows
// than expected for a key that should be unique.
var ErrCardinality = errors.New("payments: multiple rows matched a unique key")

// transientCodes are Postgres SQLSTATEs treated as connection/timeout/
// rate-limit conditions.
var transientCodes = map[string]bool{
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"57014": true, // query_canceled
	"53300": true, // too_many_connections
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

// ClassifyReadError implements classifyReadError: SQLSTATE 22xx/
// 23xx → integrity (terminal); cardinality markers → cardinality (terminal);
// connection/timeout/rate-limit → transient; otherwise unknown.
func ClassifyReadError(operation string, err error) *apperrors.RepositoryError {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrCardinality) {
		return apperrors.NewRepositoryError(operation, "", apperrors.CategoryCardinality, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		if strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23") {
			return apperrors.NewRepositoryError(operation, code, apperrors.CategoryIntegrity, err)
		}
		if transientCodes[code] {
			return apperrors.NewRepositoryError(operation, code, apperrors.CategoryTransient, err)
		}
		return apperrors.NewRepositoryError(operation, code, apperrors.CategoryUnknown, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewRepositoryError(operation, "", apperrors.CategoryTransient, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		// Not-found is handled by resolvers returning (nil, nil); a raw
		// ErrNoRows surfacing here means a caller misused a single-row
		// query path. Treat conservatively as unknown/retryable rather
		// than silently terminal.
		return apperrors.NewRepositoryError(operation, "", apperrors.CategoryUnknown, err)
	}

	return apperrors.NewRepositoryError(operation, "", apperrors.CategoryUnknown, err)
}
