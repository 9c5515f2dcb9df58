package verification

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// carryCookies copies the cookies set on rec into a fresh request, the way a
// browser would on its next visit. Expired cookies are dropped.
func carryCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func TestCookieSlotsRoundTrip(t *testing.T) {
	opts := CookieOptions{MaxAge: 3600, HttpOnly: true}

	rec := httptest.NewRecorder()
	s := NewSession(NewCookieSlots(rec, httptest.NewRequest("GET", "/", nil), opts))
	s.SetPhoneNumber("(11) 99999-8888")
	s.SetVerified(true)

	next := NewSession(NewCookieSlots(httptest.NewRecorder(), carryCookies(rec), opts))
	phone, ok := next.PhoneNumber()
	if !ok || phone != "(11) 99999-8888" {
		t.Errorf("PhoneNumber() = %q, %v; want %q", phone, ok, "(11) 99999-8888")
	}
	if !next.IsVerified().Bool() {
		t.Error("expected verified on the next request")
	}
}

func TestCookieSlotsNames(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewSession(NewCookieSlots(rec, httptest.NewRequest("GET", "/", nil), CookieOptions{}))
	s.SetPhoneNumber("11999998888")
	s.SetVerified(false)
	s.SetAdmin("true")

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
		if c.Path != "/" {
			t.Errorf("cookie %q path = %q, want /", c.Name, c.Path)
		}
	}
	for _, want := range []string{"nifa-phoneNumber", "nifa-isVerified", "nifa-admin"} {
		if !names[want] {
			t.Errorf("missing cookie %q", want)
		}
	}
}

func TestCookieSlotsReadYourWrites(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "nifa-isVerified", Value: "true"})

	s := NewSession(NewCookieSlots(httptest.NewRecorder(), req, CookieOptions{}))
	if !s.IsVerified().Bool() {
		t.Fatal("expected verified from request cookie")
	}

	s.Logout()
	if s.IsVerified() != FlagAbsent {
		t.Error("expected logout to be visible within the same request")
	}
}

func TestCookieSlotsLogoutExpires(t *testing.T) {
	rec := httptest.NewRecorder()
	s := NewSession(NewCookieSlots(rec, httptest.NewRequest("GET", "/", nil), CookieOptions{}))
	s.Logout()

	cookies := rec.Result().Cookies()
	if len(cookies) != 3 {
		t.Fatalf("got %d cookies, want 3", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			t.Errorf("cookie %q MaxAge = %d, want expired", c.Name, c.MaxAge)
		}
	}
}

func TestCookieSlotsSigned(t *testing.T) {
	opts := CookieOptions{SigningKey: []byte("secret")}

	rec := httptest.NewRecorder()
	NewSession(NewCookieSlots(rec, httptest.NewRequest("GET", "/", nil), opts)).SetVerified(true)

	next := NewSession(NewCookieSlots(httptest.NewRecorder(), carryCookies(rec), opts))
	if !next.IsVerified().Bool() {
		t.Fatal("expected signed cookie to verify")
	}
}

func TestCookieSlotsTamperedReadsAbsent(t *testing.T) {
	opts := CookieOptions{SigningKey: []byte("secret")}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "nifa-isVerified", Value: "true"})
	s := NewSession(NewCookieSlots(httptest.NewRecorder(), req, opts))
	if got := s.IsVerified(); got != FlagAbsent {
		t.Errorf("unsigned value read as %v, want FlagAbsent", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "nifa-isVerified", Value: "true.AAAA"})
	s = NewSession(NewCookieSlots(httptest.NewRecorder(), req, opts))
	if got := s.IsVerified(); got != FlagAbsent {
		t.Errorf("bad tag read as %v, want FlagAbsent", got)
	}
}

func TestCookieSlotsSignatureBoundToSlot(t *testing.T) {
	opts := CookieOptions{SigningKey: []byte("secret")}

	rec := httptest.NewRecorder()
	NewSession(NewCookieSlots(rec, httptest.NewRequest("GET", "/", nil), opts)).SetAdmin("true")

	var adminValue string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "nifa-admin" {
			adminValue = c.Value
		}
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "nifa-isVerified", Value: adminValue})
	s := NewSession(NewCookieSlots(httptest.NewRecorder(), req, opts))
	if s.IsVerified() != FlagAbsent {
		t.Error("expected a value signed for another slot to read as absent")
	}
}
