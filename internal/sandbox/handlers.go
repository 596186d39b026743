package sandbox

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/gymbooking/internal/auth"
	"example.com/gymbooking/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
	tokenTTL        = 24 * time.Hour
)

// Handler serves the booking API from a Store.
type Handler struct {
	store  *Store
	tokens auth.Config
	logger *log.Logger
}

// NewHandler builds a Handler.
func NewHandler(store *Store, tokens auth.Config, logger *log.Logger) *Handler {
	return &Handler{store: store, tokens: tokens, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	Otp   string `json:"otp"`
}

type resetRequest struct {
	Email       string `json:"email"`
	Otp         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type reservationRequest struct {
	UserID  string `json:"userId"`
	ClassID string `json:"classId"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "validation_failed", "email and a password of at least 6 characters are required")
		return
	}
	user, err := h.store.Register(req.Email, req.Password)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeAuthResult(w, user)
}

func (h *Handler) sendOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.store.IssueOtp(req.Email); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "code sent"})
}

func (h *Handler) verifyOtp(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.store.VerifyOtp(req.Email, req.Otp)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.writeAuthResult(w, user)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "validation_failed", "password must be at least 6 characters")
		return
	}
	if err := h.store.ResetPassword(req.Email, req.Otp, req.NewPassword); err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) listClasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.FilterCriteria{
		Location:   q.Get("location"),
		Discipline: q.Get("discipline"),
		Date:       q.Get("date"),
	}.Normalize()
	if err := filter.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	size := defaultPageSize
	if raw := q.Get("size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxPageSize {
				parsed = maxPageSize
			}
			size = parsed
		}
	}
	writeJSON(w, http.StatusOK, h.store.ListClasses(filter, page, size))
}

func (h *Handler) getClass(w http.ResponseWriter, r *http.Request) {
	class, ok := h.store.Class(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", ErrClassNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, class)
}

func (h *Handler) createReservation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	var req reservationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ClassID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "userId and classId are required")
		return
	}
	if req.UserID != claims.Subject {
		h.writeStoreError(w, ErrForbidden)
		return
	}
	res, err := h.store.Reserve(req.UserID, req.ClassID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) cancelReservation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	res, err := h.store.Cancel(claims.Subject, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing userId parameter")
		return
	}
	if userID != claims.Subject {
		h.writeStoreError(w, ErrForbidden)
		return
	}
	from, errFrom := time.Parse(domain.DateLayout, q.Get("startDate"))
	to, errTo := time.Parse(domain.DateLayout, q.Get("endDate"))
	if errFrom != nil || errTo != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "startDate and endDate must use YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, h.store.History(userID, from, to))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	id := chi.URLParam(r, "id")
	if id != claims.Subject {
		h.writeStoreError(w, ErrForbidden)
		return
	}
	user, ok := h.store.User(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) writeAuthResult(w http.ResponseWriter, user domain.User) {
	token, _, err := auth.Issue(h.tokens, user.ID, user.Email, time.Now(), tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, domain.AuthResult{Token: token, User: user})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid email or password")
	case errors.Is(err, ErrNotVerified), errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrClassNotFound), errors.Is(err, ErrReservationMissing):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrClassFull), errors.Is(err, ErrAlreadyReserved), errors.Is(err, ErrNotCancellable):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrOtpInvalid):
		writeError(w, http.StatusBadRequest, "invalid_otp", err.Error())
	case errors.Is(err, ErrOtpLocked):
		writeError(w, http.StatusTooManyRequests, "otp_locked", err.Error())
	default:
		h.logger.Printf("unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"type":    code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
