package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nifastore/nifa/internal/auth"
	"github.com/nifastore/nifa/internal/verification"
)

type stubAdmins map[string]bool

func (s stubAdmins) IsAdmin(phone string) (bool, error) {
	return s[phone], nil
}

type failingAdmins struct{}

func (failingAdmins) IsAdmin(string) (bool, error) {
	return false, errors.New("db down")
}

var testCookieOpts = verification.CookieOptions{}

func verifiedRequest(phone, verified, admin string) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	if phone != "" {
		req.AddCookie(&http.Cookie{Name: "nifa-phoneNumber", Value: phone})
	}
	if verified != "" {
		req.AddCookie(&http.Cookie{Name: "nifa-isVerified", Value: verified})
	}
	if admin != "" {
		req.AddCookie(&http.Cookie{Name: "nifa-admin", Value: admin})
	}
	return req
}

func TestRequireVerifiedNoCookies(t *testing.T) {
	handler := RequireVerified(testCookieOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireVerifiedFalseString(t *testing.T) {
	handler := RequireVerified(testCookieOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, verifiedRequest("11999998888", "false", ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireVerifiedMissingPhone(t *testing.T) {
	handler := RequireVerified(testCookieOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, verifiedRequest("", "true", ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireVerifiedValid(t *testing.T) {
	var got auth.Viewer
	handler := RequireVerified(testCookieOpts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected Viewer in request context")
		}
		got = v
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, verifiedRequest("11999998888", "true", "true"))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	want := auth.Viewer{PhoneNumber: "11999998888", Verified: true, Admin: true}
	if got != want {
		t.Errorf("Viewer = %+v, want %+v", got, want)
	}
}

func TestRequireAdminAllowed(t *testing.T) {
	ctx := auth.WithViewer(context.Background(), auth.Viewer{PhoneNumber: "11999998888", Verified: true, Admin: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(stubAdmins{"11999998888": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAdminCookieWithoutListing(t *testing.T) {
	ctx := auth.WithViewer(context.Background(), auth.Viewer{PhoneNumber: "21988887777", Verified: true, Admin: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(stubAdmins{"11999998888": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAdminForbidden(t *testing.T) {
	ctx := auth.WithViewer(context.Background(), auth.Viewer{PhoneNumber: "11999998888", Verified: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(stubAdmins{"11999998888": true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireAdminStoreError(t *testing.T) {
	ctx := auth.WithViewer(context.Background(), auth.Viewer{PhoneNumber: "11999998888", Verified: true, Admin: true})
	req := httptest.NewRequest("GET", "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	handler := RequireAdmin(failingAdmins{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
