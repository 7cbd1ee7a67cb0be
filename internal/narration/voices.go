package narration

import "strings"

// DefaultVoice is the provider voice used for unknown styles.
const DefaultVoice = "alloy"

var voiceTable = map[string]string{
	"professional-female": "nova",
	"professional-male":   "onyx",
	"friendly-female":     "shimmer",
	"friendly-male":       "echo",
	"narrator":            "fable",
	"neutral":             "alloy",
}

// ResolveVoice maps a semantic voice style to a provider voice id. Provider
// ids pass through unchanged; anything else resolves to DefaultVoice.
func ResolveVoice(style string) string {
	key := strings.ToLower(strings.TrimSpace(style))
	if voice, ok := voiceTable[key]; ok {
		return voice
	}
	for _, voice := range voiceTable {
		if voice == key {
			return voice
		}
	}
	return DefaultVoice
}

// VoiceStyles lists the known semantic voice styles.
func VoiceStyles() []string {
	return []string{"professional-female", "professional-male", "friendly-female", "friendly-male", "narrator", "neutral"}
}
