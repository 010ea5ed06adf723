package lexical

import "strings"

// Stem strips common English suffixes to produce an approximate stem used
// for substring matching. A shorter stem naturally matches more
// morphological variants: Stem("prices") = "pric", a substring of
// "pricing", "price", "priced".
//
// Minimum-length guards keep short words like "doing" from being
// over-stripped into meaningless two-char stems. Longer suffixes are
// checked first; order matters.
func Stem(word string) string {
	w := strings.ToLower(word)

	switch {
	case len(w) > 7 && strings.HasSuffix(w, "tion"):
		return w[:len(w)-4]
	case len(w) > 7 && strings.HasSuffix(w, "ment"):
		return w[:len(w)-4]
	case len(w) > 7 && strings.HasSuffix(w, "ness"):
		return w[:len(w)-4]
	case len(w) > 7 && strings.HasSuffix(w, "ible"):
		return w[:len(w)-4]
	case len(w) > 7 && strings.HasSuffix(w, "able"):
		return w[:len(w)-4]
	case len(w) > 6 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 6 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3]
	case len(w) > 5 && strings.HasSuffix(w, "ed") && !strings.HasSuffix(w, "eed"):
		return w[:len(w)-2]
	case len(w) > 5 && strings.HasSuffix(w, "er"):
		return w[:len(w)-2]
	case len(w) > 5 && strings.HasSuffix(w, "ly"):
		return w[:len(w)-2]
	case len(w) > 5 && strings.HasSuffix(w, "es"):
		return w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	case len(w) > 4 && strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "ee"):
		return w[:len(w)-1]
	}
	return w
}
