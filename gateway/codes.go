package gateway

const defaultDeclineMessage = "Payment declined"

var responseMessages = map[string]string{
	"0":     "Payment approved",
	"2":     "Card referred",
	"4":     "Card declined, keep card",
	"5":     "Card declined",
	"65551": "Invalid expiry date",
}

// DescribeResponseCode maps a gateway response code to the message shown to
// the caller, falling back to the gateway's own message.
func DescribeResponseCode(code, gatewayMessage string) string {
	if msg, ok := responseMessages[code]; ok {
		return msg
	}
	if gatewayMessage != "" {
		return gatewayMessage
	}
	return defaultDeclineMessage
}
