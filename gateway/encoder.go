package gateway

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Fields is a flat set of wire field values keyed by field name.
type Fields map[string]string

// Pair is a single field in wire order.
type Pair struct {
	Key   string
	Value string
}

const (
	// SignatureField carries the digest on both requests and responses.
	SignatureField = "signature"

	// Keys with this prefix are transport metadata and never signed.
	reservedPrefix = "__"
)

var (
	literalNewlines = strings.NewReplacer("\r\n", "\n", "\n\r", "\n", "\r", "\n")
	encodedNewlines = regexp.MustCompile(`(?i)%0D%0A|%0A%0D|%0D`)
)

// EncodeSorted renders fields as a form-encoded string with keys in
// lexicographic order. This is the canonical form for outbound requests.
func EncodeSorted(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, escape(k)+"="+escape(fields[k]))
	}
	return joinPairs(pairs)
}

// EncodeOrdered renders an already form-encoded response body in the order
// the gateway sent it, minus the signature pair and reserved keys.
// Values are neither decoded nor re-sorted.
func EncodeOrdered(raw []byte) string {
	kept := make([]string, 0, strings.Count(string(raw), "&")+1)
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}
		key := pairKey(pair)
		if key == SignatureField || strings.HasPrefix(key, reservedPrefix) {
			continue
		}
		kept = append(kept, pair)
	}
	return joinPairs(kept)
}

// EncodePairs form-encodes pairs without reordering them.
func EncodePairs(pairs []Pair) string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, escape(p.Key)+"="+escape(p.Value))
	}
	return strings.Join(out, "&")
}

func joinPairs(pairs []string) string {
	return normalizeNewlines(strings.Join(pairs, "&"))
}

// normalizeNewlines folds CRLF, LFCR and bare CR into LF, both as literal
// bytes and in their percent-encoded forms.
func normalizeNewlines(s string) string {
	s = literalNewlines.Replace(s)
	return encodedNewlines.ReplaceAllString(s, "%0A")
}

// escape applies form encoding: space becomes '+', and everything outside
// [A-Za-z0-9-_.] is percent-encoded with upper-case hex.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "~", "%7E")
}

func pairKey(pair string) string {
	if i := strings.IndexByte(pair, '='); i >= 0 {
		return pair[:i]
	}
	return pair
}
