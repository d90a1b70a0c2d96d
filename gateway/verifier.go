package gateway

import (
	"crypto/subtle"
	"fmt"
	"strings"
)

const (
	ReasonSignatureMissing  = "signature missing"
	ReasonSignatureEmpty    = "signature empty"
	ReasonSignatureMismatch = "signature mismatch"
)

// Verification is the result of checking a response signature.
type Verification struct {
	Valid  bool
	Reason string
}

// Verify authenticates a raw gateway response. It must be given the bytes
// exactly as received; decoding and re-encoding would change the digest.
func Verify(raw []byte, secret string) Verification {
	provided, ok := extractSignature(raw)
	if !ok {
		return Verification{Reason: ReasonSignatureMissing}
	}
	if provided == "" {
		return Verification{Reason: ReasonSignatureEmpty}
	}

	expected := digest(EncodeOrdered(raw), secret)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return Verification{Reason: ReasonSignatureMismatch}
	}
	return Verification{Valid: true}
}

// Err returns nil for a valid signature and a descriptive error otherwise.
func (v Verification) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("response verification failed: %s", v.Reason)
}

// extractSignature returns the undecoded value of the first pair whose key is
// exactly "signature". Matching on whole pairs avoids picking up a field that
// merely ends in "signature".
func extractSignature(raw []byte) (string, bool) {
	for _, pair := range strings.Split(string(raw), "&") {
		key, value, found := strings.Cut(pair, "=")
		if key != SignatureField {
			continue
		}
		if !found {
			return "", true
		}
		return value, true
	}
	return "", false
}
