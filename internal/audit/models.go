package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Action names the identity lifecycle transition an event records.
type Action string

const (
	// ActionIdentityCreated records a new primary contact (new cluster).
	ActionIdentityCreated Action = "identity_created"
	// ActionIdentityLinked records a new secondary appended to a cluster.
	ActionIdentityLinked Action = "identity_linked"
)

// Event captures one identity transition. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ContactID string    `json:"contactId"`
	// PrimaryContactID is the cluster head. Equals ContactID for
	// identity_created events.
	PrimaryContactID string `json:"primaryContactId"`
	// FingerprintHash is the SHA-256 of the provider identifier. The raw
	// fingerprint is an identity key and never leaves the contact store.
	FingerprintHash string `json:"fingerprintHash"`
	RequestID       string `json:"requestId,omitempty"`
}

// HashFingerprint produces the audit-safe form of a provider identifier.
func HashFingerprint(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:])
}
