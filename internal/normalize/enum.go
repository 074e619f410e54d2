package normalize

import "strings"

// Enumerated trims value and returns fallback when the result is empty.
//
// Domain membership is deliberately not enforced: a non-empty value outside
// domain is returned trimmed, so level names added upstream survive a round
// trip through older clients. The domain parameter documents the expected
// values for callers and is otherwise unused.
func Enumerated(value, fallback string, domain []string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

// ResolveClosed matches value case-insensitively against a closed domain
// (normally two members) and returns the canonical member. Anything else,
// including the empty string, resolves to def.
func ResolveClosed(value string, domain []string, def string) string {
	trimmed := strings.TrimSpace(value)
	for _, member := range domain {
		if strings.EqualFold(trimmed, member) {
			return member
		}
	}
	return def
}

// NextTier returns the tier after value in the ordered domain, clamped to
// the last tier. A value not in domain maps to the first tier.
func NextTier(value string, domain []string) string {
	if len(domain) == 0 {
		return value
	}
	index := indexOf(domain, value)
	if index == -1 {
		return domain[0]
	}
	return domain[min(index+1, len(domain)-1)]
}

// IsAtMaxTier reports whether value is the last tier of domain.
// Unrecognized values are never at the maximum.
func IsAtMaxTier(value string, domain []string) bool {
	index := indexOf(domain, value)
	return index != -1 && index == len(domain)-1
}

func indexOf(domain []string, value string) int {
	for i, member := range domain {
		if member == value {
			return i
		}
	}
	return -1
}
