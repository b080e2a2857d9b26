package httpx

import (
	"cmp"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"

	"github.com/ariefcatur/go-watch-bids/internal/contextx"
	"github.com/ariefcatur/go-watch-bids/internal/logx"
)

const (
	headerTraceID        = "X-Trace-Id"
	headerUserID         = "X-User-Id"
	headerIdempotencyKey = "Idempotency-Key"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// TraceID propagates the caller's trace id or mints one.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(headerTraceID)
		if traceID == "" {
			traceID = xid.New().String()
		}
		ctx := contextx.WithTraceID(r.Context(), contextx.TraceID(traceID))
		w.Header().Set(headerTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger stores a request-scoped logger in the context.
func Logger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceID, _ := contextx.TraceIDFromContext(ctx)
			ctx = contextx.WithLogger(ctx, base.With(
				logx.Stringer(logx.FieldTraceID, traceID),
				logx.Stringer(logx.FieldURL, r.URL),
				slog.String(logx.FieldHTTPMethod, r.Method),
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger(r.Context()).Info("http request",
			slog.Int(logx.FieldResponseStatus, cmp.Or(ww.Status(), http.StatusOK)),
			slog.Int64(logx.FieldDurationMs, time.Since(start).Milliseconds()),
		)
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger(r.Context()).Error("panic in handler",
					slog.Any(logx.FieldError, rec),
					slog.String(logx.FieldStack, string(debug.Stack())),
				)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// UserID takes the caller identity set by the auth proxy; requests without one get 401.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerUserID)
		if id == "" {
			writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
				Code:      "Unauthenticated",
				Message:   "missing " + headerUserID + " header",
				SupportID: supportID(r.Context()),
			})
			return
		}
		ctx := contextx.WithUserID(r.Context(), contextx.UserID(id))
		ctx = contextx.WithLogger(ctx, logger(ctx).With(slog.String(logx.FieldUserID, id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := contextx.UserIDFromContext(r.Context())
	return id.String()
}
