package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-contacts-api/internal/model"
)

const requestIDHeader = "X-Request-ID"

const requestStateKey contextKey = "request_state"

// requestState is shared between Logging and the handlers below it. RequireAuth
// fills in the account so the access line can name it.
type requestState struct {
	log       *slog.Logger
	accountID string
}

// LoggerFromContext returns the request-scoped logger, or the default logger
// outside of a logged request.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if state, ok := ctx.Value(requestStateKey).(*requestState); ok {
		return state.log
	}
	return slog.Default()
}

func noteAccount(ctx context.Context, accountID string) {
	if state, ok := ctx.Value(requestStateKey).(*requestState); ok {
		state.accountID = accountID
	}
}

// Logging tags each request with an id, exposes a logger carrying it and writes
// one access line when the handler returns.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		state := &requestState{log: slog.Default().With("request_id", requestID)}
		recorder := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), requestStateKey, state)))

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.String("client_ip", ClientIP(r)),
		}
		if state.accountID != "" {
			attrs = append(attrs, slog.String("account_id", state.accountID))
		}
		attrs = append(attrs, failureAttrs(recorder)...)

		state.log.LogAttrs(r.Context(), accessLevel(recorder.status), "request", attrs...)
	})
}

func accessLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// failureAttrs reads the error envelope of a failed response.
func failureAttrs(rw *responseWriter) []slog.Attr {
	if rw.status < 400 || rw.body.Len() == 0 {
		return nil
	}

	var envelope model.APIResponse
	if err := json.Unmarshal(rw.body.Bytes(), &envelope); err != nil || envelope.Error == nil {
		return nil
	}

	attrs := []slog.Attr{
		slog.String("error_code", envelope.Error.Code),
		slog.String("error_message", envelope.Error.Message),
	}
	if envelope.Error.Details != "" {
		attrs = append(attrs, slog.String("error_details", envelope.Error.Details))
	}
	return attrs
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.status >= 400 {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
