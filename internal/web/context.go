package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/beatmaps/internal/core"
	mw "github.com/JonMunkholm/beatmaps/internal/web/middleware"
)

// userHashHeader carries the opaque uploader identity checked by the verifier.
const userHashHeader = "X-User-Hash"

// withUploader adds client IP, User-Agent and user hash to ctx for upload logs
// and verification.
func withUploader(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithUploader(ctx, core.Uploader{
		IP:        mw.ClientIP(r),
		UserAgent: r.UserAgent(),
		UserHash:  r.Header.Get(userHashHeader),
	})
}
