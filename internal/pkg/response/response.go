package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// JSON writes a JSON response
func JSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent
		ctxzap.Warn(ctx, "failed to encode response", zap.Error(err))
	}
}

// Error logs err and writes an error body with the status text and message
func Error(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	fields := []zap.Field{zap.Int("status", status)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, fields...)
	} else {
		ctxzap.Warn(ctx, message, fields...)
	}

	JSON(ctx, w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// Success writes a 200 OK response
func Success(ctx context.Context, w http.ResponseWriter, data any) {
	JSON(ctx, w, http.StatusOK, data)
}

// Created writes a 201 Created response
func Created(ctx context.Context, w http.ResponseWriter, data any) {
	JSON(ctx, w, http.StatusCreated, data)
}

// Accepted writes a 202 Accepted response
func Accepted(ctx context.Context, w http.ResponseWriter, message string) {
	JSON(ctx, w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": message,
	})
}
