package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

var (
	// ErrNotFound is the normal outcome of a point lookup that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks failures of the store itself (network, timeout,
	// no reachable server). It is fatal for the current request only.
	ErrUnavailable = errors.New("store unavailable")
)

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailable, e.err)
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.err}
}

// Classify tags connectivity and timeout failures with ErrUnavailable while
// keeping the driver error reachable through errors.Is/As. Other errors pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	if isUnavailable(err) {
		return &unavailableError{err: err}
	}
	return err
}

func isUnavailable(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var sse topology.ServerSelectionError
	return errors.As(err, &sse)
}

// IsDuplicateKeyError reports a unique index violation (E11000).
func IsDuplicateKeyError(err error) bool {
	return err != nil && mongo.IsDuplicateKeyError(err)
}
