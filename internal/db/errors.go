package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for database operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransactionConflict indicates a SurrealDB transaction conflict.
	// This occurs when concurrent upserts touch the same records.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrDimensionMismatch indicates the HNSW index rejected a vector
	// of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the appropriate
// sentinel error if it's a known query error type. Returns the original error
// if it's not a QueryError or doesn't match known patterns.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
		if strings.Contains(msg, "dimension") {
			return fmt.Errorf("%w: %s", ErrDimensionMismatch, msg)
		}
	}

	return err
}
