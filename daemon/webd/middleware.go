package webd

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	ghandlers "github.com/gorilla/handlers"
)

// tokenAuthenticationMiddleware checks for a valid token in the Authorization header
// ("Bearer <token>") or the api_token query param.
// If the token is not valid, it returns a 403 Forbidden.
// If no token is configured, it allows all requests.
func tokenAuthenticationMiddleware(validToken string) func(http.Handler) http.Handler {
	if validToken == "" {
		slog.Warn("No web token set, allowing all requests")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validToken == "" {
				next.ServeHTTP(w, r)
				return
			}
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				token = r.URL.Query().Get("api_token")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(validToken)) != 1 {
				slog.Warn("Invalid token",
					"method", r.Method, "url", r.URL.Path,
					"remote-addr", r.RemoteAddr, "user-agent", r.UserAgent())
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func corsHandler(next http.Handler) http.Handler {
	return ghandlers.CORS(
		ghandlers.AllowedOrigins([]string{"*"}),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"}),
	)(next)
}

// loggingMiddleware writes one access log record per request.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
			host, _, err := net.SplitHostPort(p.Request.RemoteAddr)
			if err != nil {
				host = p.Request.RemoteAddr
			}
			for _, v := range p.Request.Header.Values("X-Forwarded-For") {
				host += "->" + v
			}
			logger.Debug("HTTP",
				"remote", host,
				"method", p.Request.Method,
				"uri", p.URL.RequestURI(),
				"status", p.StatusCode,
				"size", p.Size,
				"elapsed", time.Since(p.TimeStamp).Round(time.Microsecond))
		})
	}
}
