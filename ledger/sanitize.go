package ledger

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

const maxRawPayload = 1024

var (
	// Dropped outright, on every path.
	cvvKeys = map[string]bool{
		"cardcvv":  true,
		"cvv":      true,
		"cvv2":     true,
		"card_cvv": true,
	}
	panKeys = map[string]bool{
		"cardnumber":  true,
		"card_number": true,
		"pan":         true,
	}
)

// MaskCardNumber keeps the first and last four characters of values longer
// than eight and masks everything else.
func MaskCardNumber(v string) string {
	n := len(v)
	if n > 8 {
		return v[:4] + strings.Repeat("*", n-8) + v[n-4:]
	}
	return strings.Repeat("*", n)
}

// SanitizeFields returns a copy safe to persist or log: CVV removed and card
// numbers masked. Key matching is case-insensitive.
func SanitizeFields(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		lk := strings.ToLower(k)
		switch {
		case cvvKeys[lk]:
			continue
		case panKeys[lk]:
			out[k] = MaskCardNumber(v)
		default:
			out[k] = v
		}
	}
	return out
}

// SanitizeRaw redacts a form-encoded body without decoding it. Used for
// bodies that could not be parsed.
func SanitizeRaw(raw []byte) string {
	pairs := strings.Split(string(raw), "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		lk := strings.ToLower(key)
		switch {
		case cvvKeys[lk]:
			continue
		case panKeys[lk]:
			kept = append(kept, key+"="+MaskCardNumber(value))
		default:
			kept = append(kept, pair)
		}
	}
	s := strings.Join(kept, "&")
	if len(s) > maxRawPayload {
		s = s[:maxRawPayload]
	}
	return s
}

func toJSON(fields map[string]string) datatypes.JSON {
	if fields == nil {
		return nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
