package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/pkg/apierror"
)

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := render.DecodeJSON(r.Body, dst); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}

	return v
}

func contactID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid contact id", raw)
	}
	return id, nil
}

func actorFromRequest(r *http.Request) model.AuditActor {
	return model.AuditActor{IP: middleware.ClientIP(r)}
}

func currentAccount(r *http.Request) (model.Account, error) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		return model.Account{}, apierror.Unauthorized("authentication required")
	}
	return account, nil
}
