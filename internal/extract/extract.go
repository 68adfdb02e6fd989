// Package extract pulls candidate recipient addresses out of free text.
package extract

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// DefaultDenylist filters generic mailboxes nobody reads.
var DefaultDenylist = []string{"noreply", "no-reply", "donotreply"}

// Extractor finds email addresses in text, dropping any containing a
// denylisted substring (case-insensitive).
type Extractor struct {
	denylist []string
}

// New creates an extractor. A nil denylist uses DefaultDenylist.
func New(denylist []string) *Extractor {
	if denylist == nil {
		denylist = DefaultDenylist
	}
	return &Extractor{denylist: denylist}
}

// Extract returns the addresses found in text, deduplicated in first-seen
// order.
func (e *Extractor) Extract(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var emails []string
	for _, match := range emailPattern.FindAllString(text, -1) {
		if e.denied(match) || seen[match] {
			continue
		}
		seen[match] = true
		emails = append(emails, match)
	}
	return emails
}

func (e *Extractor) denied(email string) bool {
	lower := strings.ToLower(email)
	for _, term := range e.denylist {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
