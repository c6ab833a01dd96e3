package scoring

import "strings"

// DescriptionLimit is the presentation length of ScoredMatch descriptions, in runes.
const DescriptionLimit = 500

// Truncate shortens s to at most limit runes. It cuts after the last sentence
// if one ends in the final 100 runes, otherwise at the last space in the final
// 50 runes, otherwise mid-word; the last two add "...".
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	head := string(runes[:limit])
	lastPeriod := runeIndex(head, strings.LastIndex(head, "."))
	lastSpace := runeIndex(head, strings.LastIndex(head, " "))

	switch {
	case lastPeriod > limit-100:
		return string(runes[:lastPeriod+1])
	case lastSpace > limit-50:
		return string(runes[:lastSpace]) + "..."
	default:
		return string(runes[:limit-3]) + "..."
	}
}

// runeIndex converts a byte offset in s into a rune offset.
func runeIndex(s string, byteIdx int) int {
	if byteIdx < 0 {
		return -1
	}
	return len([]rune(s[:byteIdx]))
}
