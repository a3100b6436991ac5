package handler

import (
	"net/http"

	"go-contacts-api/internal/model"
	"go-contacts-api/internal/service"
)

// ListLimits bounds the limit query parameter of the contact list.
type ListLimits struct {
	Default int
	Min     int
	Max     int
}

func (l ListLimits) clamp(raw string) int {
	limit := parseIntOrDefault(raw, l.Default)
	if limit < l.Min {
		limit = l.Min
	}
	if l.Max > 0 && limit > l.Max {
		limit = l.Max
	}
	return limit
}

type ContactHandler struct {
	service *service.ContactService
	limits  ListLimits
}

func NewContactHandler(service *service.ContactService, limits ListLimits) *ContactHandler {
	return &ContactHandler{service: service, limits: limits}
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	offset := parseIntOrDefault(query.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	contacts, meta, err := h.service.List(r.Context(), account.ID, h.limits.clamp(query.Get("limit")), offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ContactListData{Contacts: contacts}, &meta)
}

func (h *ContactHandler) Search(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	contacts, err := h.service.Search(r.Context(), account.ID, r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ContactListData{Contacts: contacts}, nil)
}

func (h *ContactHandler) Birthdays(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	contacts, err := h.service.UpcomingBirthdays(r.Context(), account.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ContactListData{Contacts: contacts}, nil)
}

func (h *ContactHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := contactID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	contact, err := h.service.Get(r.Context(), account.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, contact, nil)
}

func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.ContactInput
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	contact, err := h.service.Create(r.Context(), account.ID, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, contact, nil)
}

func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := contactID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload model.ContactInput
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	contact, err := h.service.Update(r.Context(), account.ID, id, payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, contact, nil)
}

func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, err := currentAccount(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := contactID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.service.Delete(r.Context(), account.ID, id); err != nil {
		writeError(w, r, err)
		return
	}

	writeNoContent(w)
}
