package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeSorted_IgnoresInsertionOrder(t *testing.T) {
	a := Fields{}
	a["type"] = "1"
	a["amount"] = "1000"
	a["action"] = "SALE"

	b := Fields{}
	b["action"] = "SALE"
	b["type"] = "1"
	b["amount"] = "1000"

	assert.Equal(t, "action=SALE&amount=1000&type=1", EncodeSorted(a))
	assert.Equal(t, EncodeSorted(a), EncodeSorted(b))
}

func TestEncodeSorted_FormEscaping(t *testing.T) {
	got := EncodeSorted(Fields{"name": "Jo Bloggs~*", "email": "jo+1@example.com"})
	assert.Equal(t, "email=jo%2B1%40example.com&name=Jo+Bloggs%7E%2A", got)
}

func TestEncodeSorted_NormalizesNewlines(t *testing.T) {
	crlf := EncodeSorted(Fields{"addr": "line1\r\nline2"})
	lf := EncodeSorted(Fields{"addr": "line1\nline2"})
	cr := EncodeSorted(Fields{"addr": "line1\rline2"})
	lfcr := EncodeSorted(Fields{"addr": "line1\n\rline2"})

	assert.Equal(t, "addr=line1%0Aline2", lf)
	assert.Equal(t, lf, crlf)
	assert.Equal(t, lf, cr)
	assert.Equal(t, lf, lfcr)
}

func TestEncodeOrdered_PreservesOrder(t *testing.T) {
	raw := []byte("responseCode=0&amount=1000&orderRef=abc")
	assert.Equal(t, "responseCode=0&amount=1000&orderRef=abc", EncodeOrdered(raw))

	swapped := []byte("amount=1000&responseCode=0&orderRef=abc")
	assert.NotEqual(t, EncodeOrdered(raw), EncodeOrdered(swapped))
}

func TestEncodeOrdered_DropsSignatureAndReservedKeys(t *testing.T) {
	raw := []byte("responseCode=0&__wafRequestID=xyz&signature=deadbeef&orderRef=abc")
	assert.Equal(t, "responseCode=0&orderRef=abc", EncodeOrdered(raw))
}

func TestEncodeOrdered_DoesNotDecode(t *testing.T) {
	raw := []byte("responseMessage=AUTHCODE%3A123456&name=Jo+Bloggs")
	assert.Equal(t, "responseMessage=AUTHCODE%3A123456&name=Jo+Bloggs", EncodeOrdered(raw))
}

func TestEncodeOrdered_NormalizesEncodedNewlines(t *testing.T) {
	assert.Equal(t, "a=x%0Ay", EncodeOrdered([]byte("a=x%0d%0ay")))
	assert.Equal(t, "a=x%0Ay", EncodeOrdered([]byte("a=x%0A%0Dy")))
	assert.Equal(t, "a=x%0Ay", EncodeOrdered([]byte("a=x%0Dy")))
}

func TestEncodePairs_KeepsGivenOrder(t *testing.T) {
	got := EncodePairs([]Pair{{Key: "z", Value: "1"}, {Key: "a", Value: "two words"}})
	assert.Equal(t, "z=1&a=two+words", got)
}
