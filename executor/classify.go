package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/lib/pq"

	"github.com/goliatone/go-inbox/core"
)

// Classify tags an operation error as retryable or fatal. Errors that
// already carry a classification pass through untouched so a fatal domain
// error raised inside an operation is never re-labeled transient by the
// retry machinery.
func Classify(err error, operation string) error {
	if err == nil {
		return nil
	}
	if alreadyClassified(err) {
		return err
	}
	if isTransient(err) {
		return core.NewRetryableInfraError(err, "executor: "+operation+" hit transient failure")
	}
	return core.NewFatalInfraError(err, "executor: "+operation+" failed")
}

func alreadyClassified(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return strings.TrimSpace(rich.TextCode) != ""
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, driver.ErrBadConn):
		return true
	case errors.Is(err, sql.ErrConnDone):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return isTransientPGCode(string(pqErr.Code))
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// isTransientPGCode keys off the SQLSTATE class. Connection exceptions,
// resource exhaustion, operator cancellation, and serialization rollbacks
// can clear on retry; integrity, data, and syntax errors cannot.
func isTransientPGCode(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08": // connection_exception
		return true
	case "53": // insufficient_resources (53300 too_many_connections)
		return true
	case "57": // operator_intervention (57014 query_canceled)
		return true
	case "40": // transaction_rollback (40001 serialization_failure)
		return true
	}
	return false
}
