package content

import "unicode"

// cyrillicRatio returns the share of Cyrillic letters among all letters in s.
// Strings without letters score zero.
func cyrillicRatio(s string) float64 {
	var letters, cyrillic int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Cyrillic, r) {
			cyrillic++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(cyrillic) / float64(letters)
}
