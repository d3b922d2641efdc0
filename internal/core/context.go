package core

import "context"

type contextKey string

const ctxKeyUploader contextKey = "uploader"

// Uploader describes the client that sent an archive. It only feeds logs.
type Uploader struct {
	IP        string
	UserAgent string
	// UserHash is the opaque identity passed to the verification provider.
	UserHash string
}

// ContextWithUploader attaches uploader metadata to ctx.
func ContextWithUploader(ctx context.Context, u Uploader) context.Context {
	return context.WithValue(ctx, ctxKeyUploader, u)
}

// UploaderFromContext returns the uploader metadata in ctx, or the zero value.
func UploaderFromContext(ctx context.Context) Uploader {
	u, _ := ctx.Value(ctxKeyUploader).(Uploader)
	return u
}
