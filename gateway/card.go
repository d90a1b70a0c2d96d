package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Card holds the raw card primitives supplied by the caller.
type Card struct {
	Number      string
	ExpiryMonth string
	ExpiryYear  string
	CVV         string
}

// CardError reports which card field failed validation.
type CardError struct {
	Field  string
	Reason string
}

func (e *CardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NormalizeCardNumber strips spaces, tabs and dashes.
func NormalizeCardNumber(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}

// NormalizeExpiryMonth zero-pads a one digit month.
func NormalizeExpiryMonth(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeExpiryYear reduces a year to its last two digits.
func NormalizeExpiryYear(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 2 {
		return s[len(s)-2:]
	}
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ValidateCard checks the card primitives after normalisation. All failing
// fields are reported, joined.
func ValidateCard(c Card) error {
	var errs []error

	pan := NormalizeCardNumber(c.Number)
	switch {
	case pan == "":
		errs = append(errs, &CardError{Field: "cardNumber", Reason: "is required"})
	case !isDigits(pan):
		errs = append(errs, &CardError{Field: "cardNumber", Reason: "must contain digits only"})
	case len(pan) < 12 || len(pan) > 19:
		errs = append(errs, &CardError{Field: "cardNumber", Reason: "must be 12 to 19 digits"})
	case !luhnValid(pan):
		errs = append(errs, &CardError{Field: "cardNumber", Reason: "failed check digit"})
	}

	month := NormalizeExpiryMonth(c.ExpiryMonth)
	if len(month) != 2 || !isDigits(month) || month < "01" || month > "12" {
		errs = append(errs, &CardError{Field: "cardExpiryMonth", Reason: "must be 1 to 12"})
	}

	year := strings.TrimSpace(c.ExpiryYear)
	if (len(year) != 2 && len(year) != 4) || !isDigits(year) {
		errs = append(errs, &CardError{Field: "cardExpiryYear", Reason: "must be 2 or 4 digits"})
	}

	cvv := strings.TrimSpace(c.CVV)
	if (len(cvv) != 3 && len(cvv) != 4) || !isDigits(cvv) {
		errs = append(errs, &CardError{Field: "cardCVV", Reason: "must be 3 or 4 digits"})
	}

	return errors.Join(errs...)
}

// CardErrorFields flattens a ValidateCard error into field -> reason.
func CardErrorFields(err error) map[string]string {
	out := map[string]string{}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var ce *CardError
			if errors.As(e, &ce) {
				out[ce.Field] = ce.Reason
			}
		}
		return out
	}
	var ce *CardError
	if errors.As(err, &ce) {
		out[ce.Field] = ce.Reason
	}
	return out
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func luhnValid(pan string) bool {
	sum, dbl := 0, false
	for i := len(pan) - 1; i >= 0; i-- {
		d := int(pan[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	return sum%10 == 0
}
