package service

import (
	"context"

	"temperaturebox/internal/models"
)

type operatorKey struct{}

// WithOperator attaches the authenticated operator to ctx. Commands submitted
// with that ctx carry the operator into their events.
func WithOperator(ctx context.Context, op models.Operator) context.Context {
	op.PasswordHash = ""
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator stored by WithOperator.
func OperatorFrom(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(models.Operator)
	return op, ok
}
