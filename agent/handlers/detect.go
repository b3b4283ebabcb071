package handlers

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var confirmationKeywords = []string{
	"confirm",
	"place order",
	"buy",
	"purchase",
	"i want this",
	"proceed",
	"yes i want",
	"go ahead",
	"yes",
}

var addressIndicators = []string{
	"address",
	"street",
	"road",
	"avenue",
	"city",
	"phone",
	"email",
	"name:",
}

// IsOrderConfirmation reports whether the text reads as the user confirming
// a purchase. Matching is case-insensitive substring search.
func IsOrderConfirmation(text string) bool {
	return containsAny(strings.ToLower(strings.TrimSpace(text)), confirmationKeywords)
}

// ContainsAddressInfo reports whether the text looks like it carries buyer
// contact or address details.
func ContainsAddressInfo(text string) bool {
	return containsAny(strings.ToLower(text), addressIndicators)
}

func startsWithConfirmation(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, k := range confirmationKeywords {
		if strings.HasPrefix(t, k) {
			return true
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	if text == "" {
		return false
	}
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// ParseSelection returns the integer in a bare-number message. Signs,
// spaces inside the number and anything else make it not a selection.
func ParseSelection(text string) (int, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(t)
	if errors.Is(err, strconv.ErrRange) {
		// Too many digits for an int is still a number, just never a valid row.
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}
