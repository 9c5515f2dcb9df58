package model

import "time"

type VerificationCode struct {
	ID        int64      `json:"id"`
	Phone     string     `json:"phone"`
	CodeHash  string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}

type Admin struct {
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}
