package rpc

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zariny/ecommerce/internal/dynvalue"
	"github.com/zariny/ecommerce/internal/inheritance"
	"github.com/zariny/ecommerce/internal/model"
)

// ToStatus maps domain errors to gRPC status errors. Unknown errors become
// codes.Internal without leaking their message.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	if br := fieldViolations(err); br != nil {
		return withDetails(codes.InvalidArgument, err.Error(), br)
	}

	var (
		cycleErr    *inheritance.CycleError
		relErr      *inheritance.RelationError
		unsupported *dynvalue.UnsupportedDataTypeError
		invalid     *dynvalue.ValidationError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, model.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &cycleErr), errors.As(err, &relErr):
		return withDetails(codes.InvalidArgument, err.Error(), &errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{Field: "bases", Description: err.Error()}},
		})
	case errors.Is(err, inheritance.ErrInvalidNode), errors.As(err, &invalid):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &unsupported):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrAbstractClass), errors.Is(err, model.ErrProductNotSaved),
		errors.Is(err, model.ErrInUse), errors.Is(err, model.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrStockBusy):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

// fieldViolations collects every *model.FieldError aggregated in err.
func fieldViolations(err error) *errdetails.BadRequest {
	var br *errdetails.BadRequest
	for _, e := range multierr.Errors(err) {
		var fe *model.FieldError
		if !errors.As(e, &fe) {
			continue
		}
		if br == nil {
			br = &errdetails.BadRequest{}
		}
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       fe.Field,
			Description: fe.Err.Error(),
		})
	}
	return br
}

// IsInternal reports whether err maps to codes.Internal.
func IsInternal(err error) bool {
	return status.Code(ToStatus(err)) == codes.Internal
}
