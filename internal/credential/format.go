package credential

import (
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// FormatRemaining renders a countdown as "4m 5s", "42s" or "Expired".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "Expired"
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Fingerprint returns a short stable digest of token for log correlation.
// The token itself must never be logged.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:8])
}
