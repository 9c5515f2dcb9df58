package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/nifastore/nifa/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const CodeTTL = 10 * time.Minute

// CodeStore persists phone verification codes. Only bcrypt hashes are stored.
type CodeStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewCodeStore(db *sql.DB) *CodeStore {
	return &CodeStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func scanCode(scanner interface{ Scan(...any) error }) (*model.VerificationCode, error) {
	var vc model.VerificationCode
	var usedAt sql.NullTime

	err := scanner.Scan(&vc.ID, &vc.Phone, &vc.CodeHash, &vc.ExpiresAt, &usedAt, &vc.Attempts, &vc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		vc.UsedAt = &usedAt.Time
	}
	return &vc, nil
}

const codeCols = `id, phone, code_hash, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new code for phone and returns it in plain text along with
// the stored record. Earlier pending codes for the phone are invalidated.
func (s *CodeStore) Create(phone string) (string, *model.VerificationCode, error) {
	now := s.now()

	_, err := s.db.Exec(
		`UPDATE verification_codes SET used_at = ? WHERE phone = ? AND used_at IS NULL AND expires_at > ?`,
		now, phone, now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash code: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO verification_codes (phone, code_hash, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		phone, string(hash), now.Add(CodeTTL), now,
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert verification code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("last insert id: %w", err)
	}

	vc, err := scanCode(s.db.QueryRow(`SELECT `+codeCols+` FROM verification_codes WHERE id = ?`, id))
	if err != nil {
		return "", nil, fmt.Errorf("get verification code: %w", err)
	}
	return code, vc, nil
}

// GetLatest returns the most recent unexpired, unused code for phone, or nil.
func (s *CodeStore) GetLatest(phone string) (*model.VerificationCode, error) {
	row := s.db.QueryRow(
		`SELECT `+codeCols+` FROM verification_codes
		 WHERE phone = ? AND expires_at > ? AND used_at IS NULL
		 ORDER BY id DESC LIMIT 1`,
		phone, s.now(),
	)
	vc, err := scanCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest verification code: %w", err)
	}
	return vc, nil
}

// Matches reports whether code is the plain text of vc.
func (s *CodeStore) Matches(vc *model.VerificationCode, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(vc.CodeHash), []byte(code)) == nil
}

// ClaimAttempt counts one attempt against a pending code and returns the new
// count. It reports false without counting when the code is used, expired or
// already has max attempts, so at most max comparisons ever happen per code.
func (s *CodeStore) ClaimAttempt(id int64, max int) (int, bool, error) {
	var attempts int
	err := s.db.QueryRow(
		`UPDATE verification_codes SET attempts = attempts + 1
		 WHERE id = ? AND used_at IS NULL AND expires_at > ? AND attempts < ?
		 RETURNING attempts`,
		id, s.now(), max,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("claim attempt: %w", err)
	}
	return attempts, true, nil
}

// MarkUsed consumes a code. It reports false when the code was already used.
func (s *CodeStore) MarkUsed(id int64) (bool, error) {
	result, err := s.db.Exec(
		`UPDATE verification_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		s.now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark verification code used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *CodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM verification_codes WHERE expires_at <= ?`, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
