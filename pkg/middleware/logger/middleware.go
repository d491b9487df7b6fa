package logger

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"go.uber.org/zap"
)

// Middleware writes one access log line per admin API request.
type Middleware struct {
	log *zap.Logger
}

func NewMiddleware(l *zap.Logger) *Middleware {
	if l == nil {
		l = zap.NewNop()
	}
	return &Middleware{log: l}
}

func (m *Middleware) Middleware(ca *auth.Middleware) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)
			body := captureBody(r)
			start := time.Now()

			defer func() {
				fields := []zap.Field{
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpMethod", r.Method),
					zap.String("uri", r.URL.Path),
					zap.String("route", routeOf(r)),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Duration("lat", time.Since(start)),
				}
				if ca != nil {
					u := ca.GetUser(r.Context())
					fields = append(fields,
						zap.Bool("isAuthenticated", ca.IsAuthenticated(r.Context())),
						zap.String("username", u.Username),
						zap.String("role", u.Role.Name),
					)
				}
				if body != nil {
					fields = append(fields, zap.ByteString("requestData", body))
				}
				m.log.Info("admin request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// captureBody buffers and restores the body of allowlisted requests. Any
// other body is left untouched for the handler to stream.
func captureBody(r *http.Request) []byte {
	if r.Body == nil || !shouldLogBody(r) {
		return nil
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	rest := r.Body
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(b), rest), rest}
	if err != nil || len(b) == 0 || len(b) > maxLoggedBody {
		return nil
	}
	return b
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
