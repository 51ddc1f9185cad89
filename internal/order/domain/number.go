package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber returns a human readable number such as
// FUR-20260301101500-3F9A1C. Uniqueness is enforced by storage, not here.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "FUR-" + now.UTC().Format("20060102150405") + "-" + suffix
}
