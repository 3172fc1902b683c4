package topic

import "strings"

// MatchFilter reports whether topic matches an MQTT filter pattern
// containing `+` (single level) and `#` (trailing multi-level) wildcards.
// Used by the debug shell's filter engine `like` operator (spec.md
// §4.11.1) against a message's topic field.
func MatchFilter(filter, topicName string) bool {
	fParts := strings.Split(filter, separator)
	tParts := strings.Split(topicName, separator)

	for i, fp := range fParts {
		if fp == "#" {
			return true // matches this level and every remaining level
		}
		if i >= len(tParts) {
			return false
		}
		if fp == "+" {
			continue
		}
		if fp != tParts[i] {
			return false
		}
	}
	return len(fParts) == len(tParts)
}
