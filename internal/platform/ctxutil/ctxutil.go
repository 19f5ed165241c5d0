package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData is attached to the request context by the auth
// middleware and read by services that need the acting user.
type RequestData struct {
	UserID    uuid.UUID
	RequestID string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}
