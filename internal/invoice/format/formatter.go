package format

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPrefix = "INV-"
	DefaultWidth  = 6
)

// FormatInvoiceNumber renders <prefix><seq zero-padded to width>. The prefix
// may carry date tokens resolved against the invoice date:
// {YYYY}, {YY}, {MM}, {DD} and {FY} (Indian financial year, e.g. 2526 for
// April 2025 to March 2026).
//
// This function is PURE: no side effects, no DB access.
func FormatInvoiceNumber(prefix string, width int, issuedAt time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}
	if width <= 0 {
		width = DefaultWidth
	}

	out := prefix
	out = strings.ReplaceAll(out, "{YYYY}", issuedAt.Format("2006"))
	out = strings.ReplaceAll(out, "{YY}", issuedAt.Format("06"))
	out = strings.ReplaceAll(out, "{MM}", issuedAt.Format("01"))
	out = strings.ReplaceAll(out, "{DD}", issuedAt.Format("02"))
	out = strings.ReplaceAll(out, "{FY}", financialYear(issuedAt))

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("unresolved token in invoice prefix: %s", prefix)
	}

	return fmt.Sprintf("%s%0*d", out, width, seq), nil
}

func financialYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d%02d", start%100, (start+1)%100)
}
