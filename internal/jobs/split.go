package jobs

import (
	"strings"
	"unicode/utf8"
)

// MaxMessageChars keeps chat messages under common platform limits.
const MaxMessageChars = 3900

// SplitMessage splits text into chunks of at most maxLen characters, breaking
// at line ends. Lines longer than maxLen are hard-split.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line += "\n"
		n := utf8.RuneCountInString(line)
		if n > maxLen {
			flush()
			rs := []rune(line)
			for i := 0; i < len(rs); i += maxLen {
				chunks = append(chunks, string(rs[i:min(i+maxLen, len(rs))]))
			}
			continue
		}
		if curLen+n > maxLen {
			flush()
		}
		current.WriteString(line)
		curLen += n
	}
	flush()
	return chunks
}
