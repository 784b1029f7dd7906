package vault

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SplitFrontmatter parses a leading YAML front-matter block. Keys are
// lower-cased and scalar values stringified. Content without a valid block is
// returned unchanged with an empty map.
func SplitFrontmatter(content string) (map[string]string, string) {
	s := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(s, "---") {
		return map[string]string{}, content
	}

	parts := strings.SplitN(s, "---", 3)
	if len(parts) < 3 {
		return map[string]string{}, content
	}

	fmText := strings.TrimSpace(parts[1])
	body := strings.TrimPrefix(parts[2], "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(fmText), &raw); err != nil {
		return map[string]string{}, content
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case string:
			out[strings.ToLower(k)] = tv
		case int, int64, float64, bool:
			out[strings.ToLower(k)] = fmt.Sprint(tv)
		case time.Time:
			layout := "2006-01-02 15:04"
			if tv.Hour() == 0 && tv.Minute() == 0 {
				layout = "2006-01-02"
			}
			out[strings.ToLower(k)] = tv.Format(layout)
		}
	}
	return out, body
}

// StripFrontmatter drops everything up to and including the closing "---"
// of a leading front-matter block, plus the newlines that follow it.
func StripFrontmatter(raw string) string {
	if !strings.HasPrefix(raw, "---") {
		return raw
	}
	end := strings.Index(raw[3:], "---")
	if end == -1 {
		return raw
	}
	return strings.TrimLeft(raw[3+end+3:], "\n")
}
