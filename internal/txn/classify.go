package txn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/lib/pq"

	"ms-booking/internal/apperrors"
)

// SQLSTATE codes that are not identified by class alone.
const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqQueryCanceled        = "57014"
	pqAdminShutdown        = "57P01"
	pqCrashShutdown        = "57P02"
	pqCannotConnectNow     = "57P03"
)

// Classify maps a failure from a unit of work, its commit or the driver onto
// the error taxonomy. A typed *apperrors.Error already in the chain wins.
func Classify(op string, err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	if e, ok := apperrors.As(err); ok {
		return e
	}
	return apperrors.Wrap(kindOf(err), op, err)
}

func kindOf(err error) apperrors.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.KindTimeout
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqSerializationFailure, pqDeadlockDetected:
			return apperrors.KindSerialization
		case pqQueryCanceled:
			return apperrors.KindTimeout
		case pqAdminShutdown, pqCrashShutdown, pqCannotConnectNow:
			return apperrors.KindConnectivity
		}
		switch pqErr.Code.Class() {
		case "22":
			// Data exceptions such as numeric overflow: the input slipped
			// past request validation.
			return apperrors.KindValidation
		case "23":
			return apperrors.KindConstraint
		case "08":
			return apperrors.KindConnectivity
		}
		return apperrors.KindInternal
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return apperrors.KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.KindConnectivity
	}

	// Both SQLite drivers behind sqliteshim only expose these as text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"):
		return apperrors.KindSerialization
	case strings.Contains(msg, "constraint failed"):
		return apperrors.KindConstraint
	}
	return apperrors.KindInternal
}
