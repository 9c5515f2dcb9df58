// Package verification holds the phone-verification state of a client session.
//
// State lives in three independently keyed slots (phone number, verified
// flag, admin flag) behind a SlotStore. The store decides where the slots
// persist; CookieSlots keeps them in the browser.
package verification

// Slot names.
const (
	SlotPhoneNumber = "phoneNumber"
	SlotVerified    = "isVerified"
	SlotAdmin       = "admin"
)

// Flag is a persisted tri-state boolean.
type Flag int

const (
	FlagAbsent Flag = iota
	FlagFalse
	FlagTrue
)

// ParseFlag interprets a stored slot value. Only the literal "true" is true;
// any other present value is false, and a missing or empty slot is absent.
func ParseFlag(raw string, present bool) Flag {
	switch {
	case !present || raw == "":
		return FlagAbsent
	case raw == "true":
		return FlagTrue
	default:
		return FlagFalse
	}
}

// FlagOf converts a bool to FlagTrue or FlagFalse.
func FlagOf(v bool) Flag {
	if v {
		return FlagTrue
	}
	return FlagFalse
}

// Bool reports whether f is FlagTrue.
func (f Flag) Bool() bool {
	return f == FlagTrue
}

// String returns the stored representation of f.
func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return ""
	}
}

// SlotStore is a set of named, externally persisted string slots scoped to
// one client session.
type SlotStore interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Clear(name string)
}

// Session is the read/write facade over the verification slots.
type Session struct {
	slots SlotStore
}

func NewSession(slots SlotStore) *Session {
	return &Session{slots: slots}
}

// PhoneNumber returns the stored phone number as written, unvalidated.
func (s *Session) PhoneNumber() (string, bool) {
	v, ok := s.slots.Get(SlotPhoneNumber)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *Session) SetPhoneNumber(phone string) {
	s.slots.Set(SlotPhoneNumber, phone)
}

func (s *Session) IsVerified() Flag {
	return ParseFlag(s.slots.Get(SlotVerified))
}

func (s *Session) SetVerified(v bool) {
	s.slots.Set(SlotVerified, FlagOf(v).String())
}

// Admin returns the raw admin slot. Its contents are opaque to this package.
func (s *Session) Admin() (string, bool) {
	v, ok := s.slots.Get(SlotAdmin)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *Session) SetAdmin(v string) {
	s.slots.Set(SlotAdmin, v)
}

func (s *Session) ClearAdmin() {
	s.slots.Clear(SlotAdmin)
}

// Logout clears every verification slot. Calling it on an empty session is a no-op.
func (s *Session) Logout() {
	s.slots.Clear(SlotPhoneNumber)
	s.slots.Clear(SlotVerified)
	s.slots.Clear(SlotAdmin)
}
