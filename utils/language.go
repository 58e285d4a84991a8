package utils

// Unicode directional marks prefixed to answers so mixed-direction UIs
// render them correctly.
const (
	RTLMark = "‏"
	LTRMark = "‎"
)

// IsArabic reports whether text contains characters from the Arabic,
// Arabic Supplement or Arabic Extended-A blocks.
func IsArabic(text string) bool {
	for _, r := range text {
		if (r >= 0x0600 && r <= 0x06FF) ||
			(r >= 0x0750 && r <= 0x077F) ||
			(r >= 0x08A0 && r <= 0x08FF) {
			return true
		}
	}
	return false
}

// Direction returns "rtl" for Arabic text, "ltr" otherwise. Detection is
// based on the text itself, not on the question that produced it.
func Direction(text string) string {
	if IsArabic(text) {
		return "rtl"
	}
	return "ltr"
}

// FormatForDirection prefixes text with the directional mark matching its
// detected language.
func FormatForDirection(text string) string {
	if IsArabic(text) {
		return RTLMark + text
	}
	return LTRMark + text
}
