package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/nifastore/nifa/internal/auth"
	"github.com/nifastore/nifa/internal/verification"
)

// AdminChecker confirms an admin claim against the server-side admin list.
type AdminChecker interface {
	IsAdmin(phone string) (bool, error)
}

// RequireVerified reads the verification cookies and rejects the request
// with 401 unless a phone number is present and the verified flag is true.
func RequireVerified(opts verification.CookieOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := verification.NewSession(verification.NewCookieSlots(w, r, opts))

			phone, ok := session.PhoneNumber()
			if !ok || !session.IsVerified().Bool() {
				jsonError(w, http.StatusUnauthorized, "phone verification required")
				return
			}

			admin, _ := session.Admin()
			v := auth.Viewer{
				PhoneNumber: phone,
				Verified:    true,
				Admin:       admin == "true",
			}

			next.ServeHTTP(w, r.WithContext(auth.WithViewer(r.Context(), v)))
		})
	}
}

// RequireAdmin must run after RequireVerified. The admin cookie alone is not
// trusted; the phone must also be on the admin list.
func RequireAdmin(admins AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := auth.FromContext(r.Context())
			if !ok || !v.Admin {
				jsonError(w, http.StatusForbidden, "admin access required")
				return
			}

			isAdmin, err := admins.IsAdmin(v.PhoneNumber)
			if err != nil {
				jsonError(w, http.StatusInternalServerError, "failed to check admin")
				return
			}
			if !isAdmin {
				jsonError(w, http.StatusForbidden, "admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
