package models

import (
	"strings"

	dErrors "contactlink/pkg/domain-errors"
)

// IdentifyRequest is the identify endpoint body. Both fields are optional but
// at least one must carry a value. Values are opaque: no email or phone
// format validation is performed, and they are stored exactly as submitted.
type IdentifyRequest struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Validate rejects requests that carry no identifying signal. Whitespace-only
// values count as absent for the presence check, but accepted values are not
// trimmed before storage.
func (r IdentifyRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.PhoneNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "at least one identifying field required")
	}
	return nil
}
