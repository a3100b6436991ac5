package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"go-contacts-api/internal/middleware"
	"go-contacts-api/internal/model"
	"go-contacts-api/internal/service"
	"go-contacts-api/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{service: service}
}

// passwordForm is the OAuth2 password grant body; username carries the email.
type passwordForm struct {
	GrantType    string `form:"grant_type"`
	Username     string `form:"username"`
	Password     string `form:"password"`
	Scope        string `form:"scope"`
	ClientID     string `form:"client_id"`
	ClientSecret string `form:"client_secret"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Signup(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, result, nil)
}

// Login accepts either a JSON body or an OAuth2 password form.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest

	if render.GetRequestContentType(r) == render.ContentTypeForm {
		defer r.Body.Close()

		var form passwordForm
		if err := render.DecodeForm(r.Body, &form); err != nil {
			writeError(w, r, apierror.BadRequest("invalid form body", err.Error()))
			return
		}
		payload = model.LoginRequest{Email: form.Username, Password: form.Password}
	} else if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	tokens, err := h.service.Login(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

// Refresh reads the refresh token from the Authorization header.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, r, apierror.Unauthorized("missing or invalid authorization header"))
		return
	}

	tokens, err := h.service.Refresh(r.Context(), token, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, tokens, nil)
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ConfirmEmail(r.Context(), chi.URLParam(r, "token"), actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	var payload model.RequestEmail
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.RequestEmail(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Logout(r.Context(), account, actorFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, account.Summary(), nil)
}

func (h *AuthHandler) Activity(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	items, meta, err := h.service.Activity(r.Context(), account,
		parseIntOrDefault(query.Get("limit"), 50),
		parseIntOrDefault(query.Get("offset"), 0),
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditListData{Items: items}, &meta)
}
