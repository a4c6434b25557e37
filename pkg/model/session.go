// Package model holds the data types shared by the controller, gateway, and store.
package model

import "time"

// Session is the durable record of one sandbox attach lifecycle, per spec section 3.
type Session struct {
	SessionID string    `db:"session_id" json:"sessionId"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	JobName   string    `db:"job_name" json:"jobName"`
	PodName   *string   `db:"pod_name" json:"podName,omitempty"`
	PodIP     *string   `db:"pod_ip" json:"podIp,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
}

// Expired reports whether the session should be treated as absent.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// HasPod reports whether pod discovery has completed for the session.
func (s Session) HasPod() bool {
	return s.PodIP != nil && *s.PodIP != ""
}
