package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Signals are the request-time identity hints handed to the provider. The
// provider decides what the visitor identifier is; the service never derives
// one from these values itself.
type Signals struct {
	Email       string
	PhoneNumber string
	ClientIP    string
	UserAgent   string
}

// Digest returns a stable SHA-256 hex digest of the canonicalized signals.
// Used as the cache and singleflight key for provider resolutions; never used
// as a visitor identifier.
func (s Signals) Digest() string {
	canonical := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(s.Email)),
		strings.TrimSpace(s.PhoneNumber),
		strings.TrimSpace(s.ClientIP),
		NormalizeUserAgent(s.UserAgent),
	}, "\n")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// NormalizeUserAgent reduces a raw User-Agent to browser, major version, and
// OS. Minor browser updates happen constantly and must not perturb the signal
// digest; major version or OS changes should.
func NormalizeUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	major := version
	if idx := strings.Index(version, "."); idx != -1 {
		major = version[:idx]
	}

	parts := make([]string, 0, 3)
	if name != "" {
		if major != "" {
			parts = append(parts, name+"/"+major)
		} else {
			parts = append(parts, name)
		}
	}
	if os := ua.OSInfo().Name; os != "" {
		parts = append(parts, os)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, " ")
}
