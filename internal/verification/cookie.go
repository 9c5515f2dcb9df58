package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

const DefaultCookiePrefix = "nifa-"

// CookieOptions controls how CookieSlots writes cookies.
type CookieOptions struct {
	Prefix   string
	Path     string
	MaxAge   int // seconds; 0 means a browser-session cookie
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite

	// SigningKey, when set, makes every value carry an HMAC-SHA256 tag.
	// Values with a missing or wrong tag read as absent.
	SigningKey []byte
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.Prefix == "" {
		o.Prefix = DefaultCookiePrefix
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// CookieName returns the cookie that holds slot name.
func (o CookieOptions) CookieName(name string) string {
	return o.withDefaults().Prefix + name
}

// CookieSlots is a request-scoped SlotStore over HTTP cookies. Writes are
// emitted as Set-Cookie headers and are visible to later reads in the same
// request. It must be used before the response header is written.
type CookieSlots struct {
	r       *http.Request
	w       http.ResponseWriter
	opts    CookieOptions
	pending map[string]*string // nil value means cleared
}

func NewCookieSlots(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieSlots {
	return &CookieSlots{
		r:       r,
		w:       w,
		opts:    opts.withDefaults(),
		pending: make(map[string]*string),
	}
}

func (c *CookieSlots) Get(name string) (string, bool) {
	if v, ok := c.pending[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	cookie, err := c.r.Cookie(c.opts.Prefix + name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.decode(name, cookie.Value)
}

func (c *CookieSlots) Set(name, value string) {
	c.pending[name] = &value
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.opts.Prefix + name,
		Value:    c.encode(name, value),
		Path:     c.opts.Path,
		MaxAge:   c.opts.MaxAge,
		HttpOnly: c.opts.HttpOnly,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	})
}

func (c *CookieSlots) Clear(name string) {
	c.pending[name] = nil
	http.SetCookie(c.w, &http.Cookie{
		Name:     c.opts.Prefix + name,
		Value:    "",
		Path:     c.opts.Path,
		MaxAge:   -1,
		HttpOnly: c.opts.HttpOnly,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	})
}

func (c *CookieSlots) encode(name, value string) string {
	escaped := url.QueryEscape(value)
	if len(c.opts.SigningKey) == 0 {
		return escaped
	}
	return escaped + "." + c.sign(name, escaped)
}

func (c *CookieSlots) decode(name, raw string) (string, bool) {
	if len(c.opts.SigningKey) > 0 {
		i := strings.LastIndexByte(raw, '.')
		if i < 0 {
			return "", false
		}
		payload, tag := raw[:i], raw[i+1:]
		if !hmac.Equal([]byte(tag), []byte(c.sign(name, payload))) {
			return "", false
		}
		raw = payload
	}
	v, err := url.QueryUnescape(raw)
	if err != nil {
		return "", false
	}
	return v, true
}

// sign binds the tag to the slot name so a value cannot be moved between slots.
func (c *CookieSlots) sign(name, payload string) string {
	mac := hmac.New(sha256.New, c.opts.SigningKey)
	mac.Write([]byte(name))
	mac.Write([]byte{0})
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
