package core

import "context"

type contextKey string

const ctxKeyConversionID contextKey = "conversion_id"

// ContextWithConversionID tags ctx with the id of the conversion it serves.
func ContextWithConversionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyConversionID, id)
}

// ConversionIDFromContext returns the conversion id, or "" if none is set.
func ConversionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyConversionID).(string); ok {
		return v
	}
	return ""
}
