package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nifastore/nifa/internal/format"
	"github.com/nifastore/nifa/internal/middleware"
	"github.com/nifastore/nifa/internal/store"
	"github.com/nifastore/nifa/internal/verification"
)

const maxCodeAttempts = 5

// CodeSender delivers a verification code to a phone.
type CodeSender interface {
	Configured() bool
	SendCode(ctx context.Context, phone, code string) error
}

type VerificationHandler struct {
	codes        *store.CodeStore
	admins       *store.AdminStore
	sender       CodeSender
	limiter      *middleware.RateLimiter
	codesPerHour int
	cookies      verification.CookieOptions
	logger       *slog.Logger
}

func NewVerificationHandler(
	codes *store.CodeStore,
	admins *store.AdminStore,
	sender CodeSender,
	limiter *middleware.RateLimiter,
	codesPerHour int,
	cookies verification.CookieOptions,
	logger *slog.Logger,
) *VerificationHandler {
	return &VerificationHandler{
		codes:        codes,
		admins:       admins,
		sender:       sender,
		limiter:      limiter,
		codesPerHour: codesPerHour,
		cookies:      cookies,
		logger:       logger,
	}
}

type statusResponse struct {
	PhoneNumber  string `json:"phone_number"`
	PhoneDisplay string `json:"phone_display"`
	Verified     bool   `json:"verified"`
	// VerifiedState is "true", "false" or "" when never set.
	VerifiedState string `json:"verified_state"`
	Admin         string `json:"admin"`
}

func (h *VerificationHandler) session(w http.ResponseWriter, r *http.Request) *verification.Session {
	return verification.NewSession(verification.NewCookieSlots(w, r, h.cookies))
}

func statusOf(s *verification.Session) statusResponse {
	phone, _ := s.PhoneNumber()
	admin, _ := s.Admin()
	flag := s.IsVerified()
	return statusResponse{
		PhoneNumber:   phone,
		PhoneDisplay:  format.Phone(phone),
		Verified:      flag.Bool(),
		VerifiedState: flag.String(),
		Admin:         admin,
	}
}

// validPhone returns the digits of raw when they form a DDD + number.
func validPhone(raw string) (string, bool) {
	d := format.Digits(raw)
	return d, len(d) == 10 || len(d) == 11
}

// Status reports the verification cookies of the caller.
func (h *VerificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusOf(h.session(w, r)))
}

// RequestCode issues a code for a phone and sends it by SMS.
func (h *VerificationHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	phone, ok := validPhone(req.Phone)
	if !ok {
		writeError(w, http.StatusBadRequest, "phone must have 10 or 11 digits including the area code")
		return
	}

	if !h.sender.Configured() {
		writeError(w, http.StatusServiceUnavailable, "sms delivery is not configured")
		return
	}

	if !h.limiter.Allow("code:"+phone, h.codesPerHour, time.Hour) {
		writeError(w, http.StatusTooManyRequests, "too many codes requested for this phone")
		return
	}

	code, _, err := h.codes.Create(phone)
	if err != nil {
		h.logger.Error("create code", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create code")
		return
	}

	if err := h.sender.SendCode(r.Context(), phone, code); err != nil {
		h.logger.Error("send code", "error", err)
		writeError(w, http.StatusBadGateway, "failed to send code")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":        "code_sent",
		"phone_display": format.Phone(phone),
	})
}

// checkCode validates code against the latest pending code for phone. Each
// comparison first claims an attempt, so concurrent guesses share the same
// budget. It returns an error message on failure.
func (h *VerificationHandler) checkCode(phone, code string) (int, string) {
	latest, err := h.codes.GetLatest(phone)
	if err != nil {
		h.logger.Error("code lookup", "error", err)
		return http.StatusInternalServerError, "internal error"
	}
	if latest == nil {
		return http.StatusUnauthorized, "code has expired or was already used, request a new one"
	}

	n, ok, err := h.codes.ClaimAttempt(latest.ID, maxCodeAttempts)
	if err != nil {
		h.logger.Error("claim attempt", "error", err)
		return http.StatusInternalServerError, "internal error"
	}
	if !ok {
		h.retire(latest.ID)
		return http.StatusUnauthorized, "too many incorrect attempts, request a new code"
	}

	if !h.codes.Matches(latest, code) {
		if n >= maxCodeAttempts {
			h.retire(latest.ID)
			return http.StatusUnauthorized, "too many incorrect attempts, request a new code"
		}
		return http.StatusUnauthorized, "incorrect code"
	}

	used, err := h.codes.MarkUsed(latest.ID)
	if err != nil {
		h.logger.Error("mark used", "error", err)
		return http.StatusInternalServerError, "internal error"
	}
	if !used {
		return http.StatusUnauthorized, "code has expired or was already used, request a new one"
	}
	return http.StatusOK, ""
}

// retire marks an exhausted code as used.
func (h *VerificationHandler) retire(id int64) {
	if _, err := h.codes.MarkUsed(id); err != nil {
		h.logger.Error("retire code", "code_id", id, "error", err)
	}
}

// Confirm checks a code and, on success, writes the verification cookies.
func (h *VerificationHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	phone, ok := validPhone(req.Phone)
	code := strings.TrimSpace(req.Code)
	if !ok || code == "" {
		writeError(w, http.StatusBadRequest, "phone and code are required")
		return
	}

	if status, msg := h.checkCode(phone, code); msg != "" {
		writeError(w, status, msg)
		return
	}

	isAdmin, err := h.admins.IsAdmin(phone)
	if err != nil {
		h.logger.Error("admin lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s := h.session(w, r)
	s.SetPhoneNumber(phone)
	s.SetVerified(true)
	if isAdmin {
		s.SetAdmin("true")
	} else {
		s.ClearAdmin()
	}

	h.logger.Info("phone verified", "phone", format.Phone(phone), "admin", isAdmin)
	writeJSON(w, http.StatusOK, statusOf(s))
}

// Logout clears all verification cookies.
func (h *VerificationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	s.Logout()
	writeJSON(w, http.StatusOK, statusOf(s))
}
