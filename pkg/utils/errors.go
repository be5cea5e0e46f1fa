package utils

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error taxonomy for the orchestrator core. Domain errors wrap one of
// these sentinels with fmt.Errorf("...: %w", ...) so errors.Is keeps
// matching after wrapping.
var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrAlreadyExists     = fmt.Errorf("already exists")
	ErrAlreadySubmitted  = fmt.Errorf("already submitted")
	ErrPrecondition      = fmt.Errorf("precondition failed")
	ErrUnavailable       = fmt.Errorf("unavailable")
	ErrResourceExhausted = fmt.Errorf("resource exhausted")
	ErrDeadlineExceeded  = fmt.Errorf("deadline exceeded")
	ErrInternal          = fmt.Errorf("internal error")
)

type DetailedError interface {
	error
	Details() string
}

// GrpcError maps a domain error onto its gRPC status code. Errors not
// wrapping one of the taxonomy sentinels are mapped to codes.Internal.
func GrpcError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrAlreadySubmitted):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrPrecondition):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrResourceExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrDeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrInternal):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
