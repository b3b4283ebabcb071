// Package handlers holds the rule-based responders that claim a turn before
// the delegate is consulted: contact extraction, order confirmation,
// address capture and numeric vehicle selection.
package handlers

import (
	"regexp"
	"strings"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

var (
	nameRe    = regexp.MustCompile(`(?i)\bname\b\s*(?::|\bis\b)?\s*([^,\n;]+)`)
	phoneRe   = regexp.MustCompile(`(?i)\bphone(?:\s+number)?\s*(?::|\bis\b)?\s*(\+?[\d\s\-()]{5,})`)
	emailRe   = regexp.MustCompile(`(?i)\be-?mail(?:\s+address)?\s*(?::|\bis\b)?\s*([^\s,;]+@[^\s,;]+)`)
	bareEmail = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	addressRe = regexp.MustCompile(`(?i)\b(?:delivery\s+)?address\s*(?::|\bis\b)?\s*(.+)`)

	emailAddressRe = regexp.MustCompile(`(?i)\be-?mail\s+address\b`)

	// labels that end an address clause when they start a comma segment
	fieldLabelRe = regexp.MustCompile(`(?i)^\s*(?:my\s+)?(?:name|phone|e-?mail)\b`)
)

// ExtractContact finds buyer fields in free text. Only fields that were
// actually found are returned; the map is empty when nothing matched.
func ExtractContact(text string) map[string]string {
	info := make(map[string]string, 4)
	if strings.TrimSpace(text) == "" {
		return info
	}

	if m := nameRe.FindStringSubmatch(text); m != nil {
		if v := cleanName(m[1]); v != "" {
			info[statex.FieldName] = v
		}
	}
	if m := phoneRe.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(m[1]); countDigits(v) >= 5 {
			info[statex.FieldPhone] = v
		}
	}
	if m := emailRe.FindStringSubmatch(text); m != nil {
		info[statex.FieldEmail] = strings.TrimRight(m[1], ".")
	} else if m := bareEmail.FindString(text); m != "" {
		info[statex.FieldEmail] = m
	}
	if m := addressRe.FindStringSubmatch(emailAddressRe.ReplaceAllString(text, "email")); m != nil {
		if v := cleanAddress(m[1]); v != "" {
			info[statex.FieldAddress] = v
		}
	}
	return info
}

// MergeContact extracts buyer fields from text into the session. It returns
// the names of the fields that were set.
func MergeContact(s *statex.Session, text string) []string {
	found := ExtractContact(text)
	if len(found) == 0 || s == nil {
		return nil
	}
	set := make([]string, 0, len(found))
	for _, field := range []string{statex.FieldName, statex.FieldEmail, statex.FieldPhone, statex.FieldAddress} {
		if v, ok := found[field]; ok && s.Collect(field, v) {
			set = append(set, field)
		}
	}
	return set
}

func cleanName(raw string) string {
	v := strings.TrimSpace(raw)
	if i := strings.Index(strings.ToLower(v), " and "); i > 0 {
		v = v[:i]
	}
	return strings.TrimRight(strings.TrimSpace(v), ".!")
}

// cleanAddress keeps comma-separated segments of the captured text until a
// segment starts another field label or reads as a confirmation.
func cleanAddress(raw string) string {
	raw = strings.TrimSpace(strings.SplitN(raw, "\n", 2)[0])
	if strings.Contains(raw, "?") {
		return ""
	}
	segments := strings.Split(raw, ",")
	kept := make([]string, 0, len(segments))
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if i > 0 && (fieldLabelRe.MatchString(seg) || startsWithConfirmation(seg)) {
			break
		}
		if seg != "" {
			kept = append(kept, seg)
		}
	}
	return strings.TrimRight(strings.Join(kept, ", "), ".!")
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
