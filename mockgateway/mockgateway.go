// Package mockgateway is a local stand-in for the card gateway's direct
// endpoint. It checks request signatures and answers with signed responses.
//
// Card numbers ending in 0002 are declined; expiry dates in the past get 65551.
package mockgateway

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"card-gateway/gateway"
	"card-gateway/ledger"
	"card-gateway/logging"
)

// Server implements http.Handler.
type Server struct {
	secret string
	now    func() time.Time
	nextID atomic.Int64
}

// New returns a mock gateway sharing secret with the client.
func New(secret string) *Server {
	s := &Server{secret: secret, now: time.Now}
	s.nextID.Store(100000)
	return s
}

// WithClock overrides the time used for expiry checks.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// ServeHTTP answers one direct SALE request with a signed response.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}

	fields := gateway.Fields{}
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	code, message := s.decide(fields)
	txID := strconv.FormatInt(s.nextID.Add(1), 10)

	logging.Info("Mock gateway request",
		zap.String("order_ref", fields["orderRef"]),
		zap.String("response_code", code),
		zap.Any("fields", ledger.SanitizeFields(fields)),
	)

	body := gateway.SignResponse([]gateway.Pair{
		{Key: "responseCode", Value: code},
		{Key: "responseMessage", Value: message},
		{Key: "transactionID", Value: txID},
		{Key: "transactionUnique", Value: fields["transactionUnique"]},
		{Key: "orderRef", Value: fields["orderRef"]},
		{Key: "amount", Value: fields["amount"]},
		{Key: "currencyCode", Value: fields["currencyCode"]},
		{Key: "cardNumberMask", Value: ledger.MaskCardNumber(fields["cardNumber"])},
	}, s.secret)

	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	_, _ = w.Write(body)
}

func (s *Server) decide(f gateway.Fields) (code, message string) {
	want := gateway.Sign(f, s.secret)
	if subtle.ConstantTimeCompare([]byte(f[gateway.SignatureField]), []byte(want)) != 1 {
		return "5", "INVALID REQUEST SIGNATURE"
	}
	if expired(f["cardExpiryMonth"], f["cardExpiryYear"], s.now()) {
		return "65551", "INVALID CARDEXPIRYDATE"
	}
	pan := f["cardNumber"]
	if len(pan) >= 4 && pan[len(pan)-4:] == "0002" {
		return "5", "CARD DECLINED"
	}
	return "0", fmt.Sprintf("AUTHCODE:%06d", s.nextID.Load()%1000000)
}

func expired(month, year string, now time.Time) bool {
	m, err := strconv.Atoi(month)
	if err != nil {
		return true
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return true
	}
	if y < 100 {
		y += 2000
	}
	cy, cm := now.Year(), int(now.Month())
	return y < cy || (y == cy && m < cm)
}
