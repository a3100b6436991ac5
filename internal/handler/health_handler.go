package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

type healthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db healthChecker
}

func NewHealthHandler(db healthChecker) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, model.MessageResult{Message: "Contacts API"}, nil)
}

// HealthChecker runs one query against the database.
func (h *HealthHandler) HealthChecker(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.db == nil {
		writeError(w, r, apierror.New("INTERNAL_ERROR", "Database is not configured correctly", "", http.StatusInternalServerError))
		return
	}

	if err := h.db.Health(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, r, apierror.New("INTERNAL_ERROR", "Database is not configured correctly", "", http.StatusInternalServerError))
		return
	}

	writeSuccess(w, http.StatusOK, model.MessageResult{Message: "Database connection is healthy"}, nil)
}
