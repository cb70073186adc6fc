package service

import "context"

type requestMetaKey struct{}

// RequestMeta — сведения о HTTP-запросе для журнала аудита.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// WithRequestMeta сохраняет сведения о запросе в контексте.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom извлекает сведения о запросе (пустые, если не заданы).
func RequestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}
