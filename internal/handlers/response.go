package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"marketscout/internal/apperr"
	"marketscout/internal/logger"
	"marketscout/internal/tracing"
)

const maxBodyBytes = 1 << 20

type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Error      bool                `json:"error"`
	Message    string              `json:"message"`
	StatusCode int                 `json:"status_code"`
	Details    []apperr.FieldError `json:"details,omitempty"`
}

type requestIDKey struct{}

// requestID returns the id assigned by the request id middleware.
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// startSpan opens the handler span and returns the log fields that tie a line to it.
func startSpan(r *http.Request, name string) (context.Context, trace.Span, []zap.Field) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(r.Context(), name)
	fields := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("request_id", requestID(r.Context())),
	}
	return ctx, span, fields
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Warn("Failed to encode JSON response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, Response{Message: message, Data: data})
}

// statusFor maps an error to its HTTP status. Field-level validation failures are 422.
func statusFor(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindValidation && len(appErr.Details) > 0 {
		return http.StatusUnprocessableEntity
	}
	return apperr.StatusCode(apperr.KindOf(err))
}

// writeError renders err as the error envelope. Internal failures are logged in full
// and reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorResponse{Error: true, StatusCode: status}

	var appErr *apperr.Error
	if apperr.KindOf(err) != apperr.KindInternal && errors.As(err, &appErr) {
		body.Message = appErr.Message
		body.Details = appErr.Details
	} else {
		body.Message = "Internal server error"
		logger.Log.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
	}

	if status == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, body)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:      true,
		Message:    fmt.Sprintf("Rate limit exceeded: try again in %d seconds", seconds),
		StatusCode: http.StatusTooManyRequests,
	})
}

func invalidField(field, message string) error {
	return apperr.Validation("Validation failed", apperr.FieldError{Field: field, Message: message})
}

// decodeJSON reads a JSON body into dst. Malformed bodies are field-level validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalidField("body", "Request body is required")
		}
		return invalidField("body", "Invalid JSON body: "+err.Error())
	}
	return nil
}

// pathID parses a positive integer path variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidField(name, "Must be a positive integer")
	}
	return id, nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalidField(name, "Must be a non-negative integer")
	}
	return v, nil
}
