package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/msgboard-be/internal/services"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Bio      *string `json:"bio"`
}

// Create handles new user registration.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Username == "" || payload.Password == "" {
		respondError(w, http.StatusBadRequest, "Must specify username and password.")
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.Username, payload.Password, payload.Bio)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Get retrieves a user by numeric id or by username, whichever the path
// segment parses as.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		user, err := h.service.GetUserByID(r.Context(), id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, user)
		return
	}

	user, err := h.service.GetUserByUsername(r.Context(), ref)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// GetMissingRef answers a bare GET /user, which carries no identifier.
func (h *UserHandler) GetMissingRef(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusBadRequest, "Must specify user_id or username.")
}
