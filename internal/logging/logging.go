package logging

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/logrus/ctxlogrus"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// ContextKey defines the context key type.
type ContextKey string

// ContextIDKey holds the key of the context ID.
const ContextIDKey ContextKey = "ctx_id"

// NewContext returns a copy of the given context with a new context ID.
func NewContext(ctx context.Context) (context.Context, error) {
	ctxID, err := uuid.NewV4()
	if err != nil {
		return nil, errors.Wrap(err, "new uuid error")
	}
	return context.WithValue(ctx, ContextIDKey, ctxID), nil
}

// GetContextID returns the context ID or uuid.Nil when not set.
func GetContextID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ContextIDKey).(uuid.UUID)
	return id
}

// StreamClientCtxIDInterceptor adds the ContextIDKey to the context of
// the opened client stream and sets it as a log field.
func StreamClientCtxIDInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	ctx, err := NewContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx = ctxlogrus.ToContext(ctx, log.WithFields(log.Fields{
		"ctx_id": GetContextID(ctx),
		"method": method,
	}))

	return streamer(ctx, desc, cc, method, opts...)
}
