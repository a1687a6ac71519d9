package listing

import "strings"

// minDigitRun is the shortest digit run treated as a listing number.
const minDigitRun = 4

// NormalizeKey reduces a free-text listing identifier to a deduplication key.
//
// The first run of at least four ASCII digits wins ("AID 649991 - Hinau" ->
// "649991"). Without one, the identifier is lowercased and everything except
// a-z and 0-9 is dropped ("3x Puppies" -> "3xpuppies"). The result may be
// empty; callers must not record an empty key.
//
// Only ASCII 0-9 count as digits. Other Unicode decimal digits, such as
// Arabic-Indic numerals, neither form a run nor survive the fallback.
func NormalizeKey(raw string) string {
	if run, ok := firstDigitRun(raw, minDigitRun); ok {
		return run
	}

	lower := strings.ToLower(raw)
	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= 'a' && c <= 'z') || isDigit(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func firstDigitRun(s string, minLen int) (string, bool) {
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && isDigit(s[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if i-start >= minLen {
				return s[start:i], true
			}
			start = -1
		}
	}
	return "", false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
