package gateway

import "fmt"

// SignaturePolicy decides what a response signature mismatch does to the
// business outcome.
type SignaturePolicy string

const (
	// PolicyAudit records the mismatch and lets the response code decide.
	PolicyAudit SignaturePolicy = "audit"
	// PolicyEnforce never reports success for an unauthenticated response.
	PolicyEnforce SignaturePolicy = "enforce"
)

// ParseSignaturePolicy accepts "audit" or "enforce"; empty means audit.
func ParseSignaturePolicy(s string) (SignaturePolicy, error) {
	switch SignaturePolicy(s) {
	case "", PolicyAudit:
		return PolicyAudit, nil
	case PolicyEnforce:
		return PolicyEnforce, nil
	default:
		return "", fmt.Errorf("unknown signature policy %q", s)
	}
}
