package visitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const sessionIDPrefix = "visitor_"

// NewSessionID returns an identifier of the form visitor_<unix millis>_<9 base36 chars>.
func NewSessionID(now time.Time) string {
	return sessionIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + randomSuffix(9)
}

func randomSuffix(n int) string {
	var sb strings.Builder
	for sb.Len() < n {
		u := uuid.New()
		// two 64-bit halves of a random uuid, rendered in base36
		for _, half := range [][]byte{u[:8], u[8:]} {
			var x uint64
			for _, b := range half {
				x = x<<8 | uint64(b)
			}
			sb.WriteString(strconv.FormatUint(x, 36))
		}
	}
	return sb.String()[:n]
}

// ValidSessionID reports whether id is safe to use as a document key
func ValidSessionID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
