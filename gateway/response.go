package gateway

import (
	"errors"
	"fmt"
	"net/url"
)

// ResponseCodeApproved is the only code that denotes an approved sale.
const ResponseCodeApproved = "0"

// ErrMalformedResponse is returned for a body that cannot be decoded or has
// no response code. The outcome of such an attempt is unknown.
var ErrMalformedResponse = errors.New("malformed gateway response")

// ParsedResponse is the decoded view of a response body. Build it only after
// the raw bytes have been kept for verification.
type ParsedResponse struct {
	Values            Fields
	ResponseCode      string
	ResponseMessage   string
	TransactionID     string
	TransactionUnique string
	OrderRef          string
}

// Approved reports whether the gateway accepted the sale.
func (p ParsedResponse) Approved() bool {
	return p.ResponseCode == ResponseCodeApproved
}

// ParseResponse decodes a form-encoded response body.
func ParseResponse(raw []byte) (ParsedResponse, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return ParsedResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, ok := values["responseCode"]; !ok {
		return ParsedResponse{}, fmt.Errorf("%w: responseCode absent", ErrMalformedResponse)
	}

	f := make(Fields, len(values))
	for k, v := range values {
		if len(v) > 0 {
			f[k] = v[0]
		}
	}
	return ParsedResponse{
		Values:            f,
		ResponseCode:      f["responseCode"],
		ResponseMessage:   f["responseMessage"],
		TransactionID:     f["transactionID"],
		TransactionUnique: f["transactionUnique"],
		OrderRef:          f["orderRef"],
	}, nil
}
