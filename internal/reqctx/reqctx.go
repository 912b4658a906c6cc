// internal/reqctx/reqctx.go
package reqctx

import "context"

type key int

const (
	keyRequestID key = iota
	keyCaller
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok
}

// WithCaller сохраняет subject сервисного JWT (кто вызвал эндпоинт уведомлений).
func WithCaller(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, keyCaller, subject)
}

func GetCaller(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCaller).(string)
	return v, ok
}
