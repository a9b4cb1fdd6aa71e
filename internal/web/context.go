package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/FuzzyCleanse/internal/core"
	"github.com/JonMunkholm/FuzzyCleanse/internal/web/middleware"
)

// withRequestMetadata adds the client IP to ctx for session logging.
func withRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, middleware.ClientIP(r))
}
