package narration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChunkChars bounds one speech request.
const DefaultMaxChunkChars = 500

// SplitScript splits script into sentences and greedily packs them into
// chunks of at most maxChars characters. A sentence is never split; a single
// sentence longer than maxChars becomes its own chunk.
func SplitScript(script string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	sentences := Sentences(script)
	var chunks []string
	var current strings.Builder
	size := 0
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+1+n > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
		}
		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(sentence)
		size += n
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Sentences splits text after runs of terminal punctuation (. ! ?) that are
// followed by whitespace or the end of input. Closing quotes and brackets
// stay with their sentence. Whitespace is collapsed.
func Sentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminal(runes[end]) || isCloser(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			out = append(out, sentence)
		}
		start = end
		i = end - 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}
