package mailbox

import (
	"fmt"
	"strings"

	"github.com/ledgerly/backend/internal/config"
)

// BuildQuery renders the provider-side filter for one sync pass: any of the
// known senders or subject keywords, within the recency window.
func BuildQuery(cfg *config.SyncConfig) string {
	var terms []string
	if len(cfg.Senders) > 0 {
		terms = append(terms, "from:("+strings.Join(cfg.Senders, " OR ")+")")
	}
	if len(cfg.SubjectKeywords) > 0 {
		terms = append(terms, "subject:("+strings.Join(cfg.SubjectKeywords, " OR ")+")")
	}

	var q string
	switch len(terms) {
	case 0:
	case 1:
		q = terms[0]
	default:
		q = "{" + strings.Join(terms, " ") + "}"
	}

	if cfg.RecencyDays > 0 {
		q = strings.TrimSpace(fmt.Sprintf("%s newer_than:%dd", q, cfg.RecencyDays))
	}
	return q
}
