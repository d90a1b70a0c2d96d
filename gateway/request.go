package gateway

import (
	"strconv"
)

const (
	actionSale       = "SALE"
	transactionECOM  = "1"
	threeDSNotNeeded = "N"
)

// MerchantSettings are the per-merchant constants sent on every request.
type MerchantSettings struct {
	MerchantID     string
	CountryCode    string
	DuplicateDelay int
	CallbackURL    string
}

// Sale describes one direct card authorization.
type Sale struct {
	Amount            int64
	CurrencyCode      int
	OrderRef          string
	TransactionUnique string
	Card              Card
	CustomerName      string
	CustomerEmail     string
	RemoteAddress     string
}

// BuildSaleFields assembles the outbound field set for a SALE without 3-D Secure.
func BuildSaleFields(m MerchantSettings, s Sale) Fields {
	f := Fields{
		"merchantID":        m.MerchantID,
		"action":            actionSale,
		"type":              transactionECOM,
		"countryCode":       m.CountryCode,
		"currencyCode":      strconv.Itoa(s.CurrencyCode),
		"amount":            strconv.FormatInt(s.Amount, 10),
		"orderRef":          s.OrderRef,
		"transactionUnique": s.TransactionUnique,
		"cardNumber":        NormalizeCardNumber(s.Card.Number),
		"cardExpiryMonth":   NormalizeExpiryMonth(s.Card.ExpiryMonth),
		"cardExpiryYear":    NormalizeExpiryYear(s.Card.ExpiryYear),
		"cardCVV":           s.Card.CVV,
		"threeDSRequired":   threeDSNotNeeded,
		"duplicateDelay":    strconv.Itoa(m.DuplicateDelay),
	}
	if m.CallbackURL != "" {
		f["callbackURL"] = m.CallbackURL
	}
	if s.CustomerName != "" {
		f["customerName"] = s.CustomerName
	}
	if s.CustomerEmail != "" {
		f["customerEmail"] = s.CustomerEmail
	}
	if s.RemoteAddress != "" {
		f["remoteAddress"] = s.RemoteAddress
	}
	return f
}
