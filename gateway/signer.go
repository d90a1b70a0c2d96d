package gateway

import (
	"crypto/sha512"
	"encoding/hex"
)

// SignedRequest is an outbound field set together with its signature.
type SignedRequest struct {
	Fields    Fields
	Signature string
}

// Encode returns the request body: the sorted fields followed by the signature.
func (r SignedRequest) Encode() string {
	return EncodeSorted(r.Fields) + "&" + SignatureField + "=" + r.Signature
}

// Sign computes the lowercase hex SHA-512 of the sorted canonical string with
// the shared secret appended. Any signature field already present is ignored.
func Sign(fields Fields, secret string) string {
	return digest(EncodeSorted(unsigned(fields)), secret)
}

// SignRequest returns a copy of fields paired with their signature.
func SignRequest(fields Fields, secret string) SignedRequest {
	f := unsigned(fields)
	return SignedRequest{Fields: f, Signature: digest(EncodeSorted(f), secret)}
}

// SignResponse builds a response body in the given field order and appends
// a signature the way the gateway does. Used by the mock gateway and tests.
func SignResponse(pairs []Pair, secret string) []byte {
	body := EncodePairs(pairs)
	sig := digest(EncodeOrdered([]byte(body)), secret)
	if body == "" {
		return []byte(SignatureField + "=" + sig)
	}
	return []byte(body + "&" + SignatureField + "=" + sig)
}

// DigestPreview returns a short prefix of a digest for diagnostic logs.
func DigestPreview(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:12] + "..."
}

func digest(canonical, secret string) string {
	sum := sha512.Sum512([]byte(canonical + secret))
	return hex.EncodeToString(sum[:])
}

func unsigned(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if k == SignatureField {
			continue
		}
		out[k] = v
	}
	return out
}
