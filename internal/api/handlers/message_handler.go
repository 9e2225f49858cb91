package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/msgboard-be/internal/auth"
	"github.com/isdelr/msgboard-be/internal/metrics"
	"github.com/isdelr/msgboard-be/internal/services"
	"github.com/rs/zerolog/log"
)

// MessageHandler handles HTTP requests for message management.
type MessageHandler struct {
	service services.MessageServiceProvider
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(service services.MessageServiceProvider) *MessageHandler {
	return &MessageHandler{service: service}
}

// MessagePayload defines the structure for create/edit requests.
type MessagePayload struct {
	Text string `json:"text"`
}

// ListPayload defines the optional JSON body of GET /messages. Query
// parameters take precedence; the body form exists for clients of the
// original API which sent paging in the request body.
type ListPayload struct {
	Offset *int `json:"offset"`
	Limit  *int `json:"limit"`
}

// Create handles posting a new message as the authenticated user.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload MessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Text == "" {
		respondError(w, http.StatusBadRequest, "You must specify text field.")
		return
	}

	msg, err := h.service.CreateMessage(r.Context(), identity.UserID, payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	metrics.MessagesCreated.Inc()
	log.Info().Int64("message_id", msg.ID).Str("username", identity.Username).Msg("Message created")
	respondJSON(w, http.StatusOK, msg)
}

// Get handles retrieving a single message by id.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Cannot find message by id: "+chi.URLParam(r, "id"))
		return
	}

	msg, err := h.service.GetMessageByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// List handles the paged listing of messages, ascending by id. An empty
// page is a 200 with [], never a 404.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Offset and limit must be integers.")
		return
	}

	messages, err := h.service.ListMessages(r.Context(), offset, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, messages)
}

// Update handles editing a message's text. Only the author may edit.
func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := messageID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Cannot find message by id: "+chi.URLParam(r, "id"))
		return
	}

	var payload MessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Text == "" {
		respondError(w, http.StatusBadRequest, "You must specify text field.")
		return
	}

	msg, err := h.service.UpdateMessage(r.Context(), id, identity.Username, payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// Delete handles removing a message. Only the author may delete.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := messageID(r)
	if err != nil {
		respondError(w, http.StatusNotFound, "Cannot find message by id: "+chi.URLParam(r, "id"))
		return
	}

	if err := h.service.DeleteMessage(r.Context(), id, identity.Username); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{})
}

func messageID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// pageParams reads offset/limit from the query string, falling back to a
// JSON body. Absent values default to offset 0 and the configured
// maximum page size (enforced by the service).
func pageParams(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if q.Has("offset") || q.Has("limit") {
		if v := q.Get("offset"); v != "" {
			if offset, err = strconv.Atoi(v); err != nil {
				return 0, 0, err
			}
		}
		if v := q.Get("limit"); v != "" {
			if limit, err = strconv.Atoi(v); err != nil {
				return 0, 0, err
			}
		}
		return offset, limit, nil
	}

	var payload ListPayload
	if decodeErr := json.NewDecoder(r.Body).Decode(&payload); decodeErr == nil {
		if payload.Offset != nil {
			offset = *payload.Offset
		}
		if payload.Limit != nil {
			limit = *payload.Limit
		}
	}
	return offset, limit, nil
}
