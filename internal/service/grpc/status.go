package grpcsvc

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// ErrorDomain попадает в ErrorInfo.Domain.
const ErrorDomain = "fulfillment.v1"

// Причины в ErrorInfo.Reason.
const (
	ReasonValidationFailed       = "VALIDATION_FAILED"
	ReasonInsufficientStock      = "INSUFFICIENT_STOCK"
	ReasonPaymentFailed          = "PAYMENT_FAILED"
	ReasonNotFound               = "NOT_FOUND"
	ReasonConflict               = "CONFLICT"
	ReasonCompensationIncomplete = "COMPENSATION_INCOMPLETE"
	ReasonUpstreamUnavailable    = "UPSTREAM_UNAVAILABLE"
	ReasonIdempotencyInProgress  = "IDEMPOTENCY_IN_PROGRESS"
	ReasonIdempotencyKeyReused   = "IDEMPOTENCY_KEY_REUSED"
	ReasonInternal               = "INTERNAL"
)

type kindMapping struct {
	kind   error
	code   codes.Code
	reason string
}

// Виды ошибок и их gRPC-коды; коды попарно различны.
var kindMappings = []kindMapping{
	{domain.ErrValidationFailed, codes.InvalidArgument, ReasonValidationFailed},
	{domain.ErrInsufficientStock, codes.ResourceExhausted, ReasonInsufficientStock},
	{domain.ErrPaymentFailed, codes.FailedPrecondition, ReasonPaymentFailed},
	{domain.ErrNotFound, codes.NotFound, ReasonNotFound},
	{domain.ErrConflict, codes.Aborted, ReasonConflict},
	{domain.ErrCompensationIncomplete, codes.DataLoss, ReasonCompensationIncomplete},
	{domain.ErrUpstreamUnavailable, codes.Unavailable, ReasonUpstreamUnavailable},
}

// toStatus переводит ошибку оркестратора в gRPC-статус с ErrorInfo.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyInProgress):
		return withDetails(codes.Aborted, err.Error(), ReasonIdempotencyInProgress, nil)
	case errors.Is(err, domain.ErrIdempotencyKeyReused):
		return withDetails(codes.AlreadyExists, err.Error(), ReasonIdempotencyKeyReused, nil)
	case errors.Is(err, context.DeadlineExceeded) && domain.KindOf(err) == nil:
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled) && domain.KindOf(err) == nil:
		return status.Error(codes.Canceled, err.Error())
	}

	kind := domain.KindOf(err)
	for _, m := range kindMappings {
		if kind != m.kind {
			continue
		}
		var sagaErr *domain.Error
		if !errors.As(err, &sagaErr) {
			return withDetails(m.code, err.Error(), m.reason, nil)
		}
		return withDetails(m.code, sagaErr.Error(), m.reason, sagaErr)
	}
	return withDetails(codes.Internal, "internal error", ReasonInternal, nil)
}

func withDetails(code codes.Code, msg, reason string, sagaErr *domain.Error) error {
	st := status.New(code, msg)
	info := &errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}

	if sagaErr != nil && len(sagaErr.StockFailures) > 0 {
		info.Metadata = make(map[string]string, len(sagaErr.StockFailures))
		violations := make([]*errdetails.PreconditionFailure_Violation, 0, len(sagaErr.StockFailures))
		for _, f := range sagaErr.StockFailures {
			info.Metadata[f.ProductID] = f.Reason
			violations = append(violations, &errdetails.PreconditionFailure_Violation{
				Type:        f.Reason,
				Subject:     f.ProductID,
				Description: "requested " + strconv.Itoa(int(f.Requested)) + ", available " + strconv.Itoa(int(f.Available)),
			})
		}
		if detailed, err := st.WithDetails(info, &errdetails.PreconditionFailure{Violations: violations}); err == nil {
			return detailed.Err()
		}
	}
	if sagaErr != nil && code == codes.InvalidArgument && len(sagaErr.Details) > 0 {
		fields := make([]*errdetails.BadRequest_FieldViolation, 0, len(sagaErr.Details))
		for _, d := range sagaErr.Details {
			fields = append(fields, &errdetails.BadRequest_FieldViolation{Description: d})
		}
		if detailed, err := st.WithDetails(info, &errdetails.BadRequest{FieldViolations: fields}); err == nil {
			return detailed.Err()
		}
	}

	if detailed, err := st.WithDetails(info); err == nil {
		return detailed.Err()
	}
	return st.Err()
}

// ErrorReason достаёт ErrorInfo.Reason из ошибки вызова.
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
