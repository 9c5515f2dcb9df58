package model

import "time"

// PushSubscription is a browser Web Push endpoint registered by a verified
// customer.
type PushSubscription struct {
	ID         int64     `json:"id"`
	Phone      string    `json:"phone"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"-"`
	AuthKey    string    `json:"-"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
