package repository

import (
	"context"
	"errors"

	"reservation-service/internal/apperror"

	"github.com/jackc/pgx/v5/pgconn"
)

// коды SQLSTATE, которые имеют значение для движка
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgExclusionViolation   = "23P01"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"

	idempotencyPKConstraint = "idempotency_records_pkey"
)

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// mapReserveError переводит ошибки транзакции бронирования в коды движка.
// Ошибки, уже имеющие код, и ErrKeyAlreadyCommitted проходят как есть.
func mapReserveError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok || errors.Is(err, apperror.ErrKeyAlreadyCommitted) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.TransactionTimeout(err)
	}

	code, constraint := pgCode(err)
	switch code {
	case pgLockNotAvailable, pgQueryCanceled:
		return apperror.TransactionTimeout(err)
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.ConcurrencyAbort(err)
	case pgUniqueViolation:
		if constraint == idempotencyPKConstraint {
			return apperror.ErrKeyAlreadyCommitted
		}
	}
	return err
}

// mapWriteError: для административных записей.
func mapWriteError(err error, conflictMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	switch code, _ := pgCode(err); code {
	case pgUniqueViolation, pgExclusionViolation:
		return apperror.Wrap(apperror.CodeRuleConflict, conflictMsg, err)
	case pgCheckViolation:
		return apperror.Wrap(apperror.CodeValidation, "value violates a table constraint", err)
	}
	return err
}
