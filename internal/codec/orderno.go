package codec

import (
	"strconv"
	"strings"
)

// GenerateOrderNo prefixes a local increment id the way the partner expects it.
func GenerateOrderNo(prefix string, incrementID int64) string {
	return prefix + strconv.FormatInt(incrementID, 10)
}

// StripOrderNoPrefix removes the partner prefix from an inbound order number.
func StripOrderNoPrefix(prefix, orderNo string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(orderNo), prefix))
}

// ParseIncrementID turns a stripped order number into the local increment id.
// Zero, negative and non-numeric values are rejected.
func ParseIncrementID(orderNo string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(orderNo), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
