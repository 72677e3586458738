package repository

import (
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/siakad-krs/pkg/errors"
)

// ErrStaleStatus is returned when a compare-and-set status update matched no row.
var ErrStaleStatus = errors.New("registration status changed concurrently")

// SQLSTATE codes that mean the transaction lost a race and can be retried by the caller.
var conflictCodes = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"23505": {}, // unique_violation
	"55P03": {}, // lock_not_available
}

// mapConflict converts Postgres contention errors into a TransactionConflict; other errors pass through.
func mapConflict(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if _, ok := conflictCodes[pqErr.Code]; ok {
			return appErrors.TransactionConflict(err)
		}
	}
	return err
}
