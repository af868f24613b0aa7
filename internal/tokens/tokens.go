// Package tokens extracts slash-commands and hashtags from message text.
package tokens

import "strings"

const (
	CommandPrefix = '/'
	TagPrefix     = '#'
)

// ExtractCommands returns the commands in text, without the leading slash,
// in order of appearance. Words are split on single spaces; a word counts
// only if it starts with '/' and contains no other '/'.
func ExtractCommands(text string) []string {
	return extract(text, CommandPrefix)
}

// ExtractTags returns the hashtags in text, without the leading '#', in order
// of appearance. Same word rules as ExtractCommands.
func ExtractTags(text string) []string {
	return extract(text, TagPrefix)
}

func extract(text string, prefix byte) []string {
	var out []string
	for _, word := range strings.Split(text, " ") {
		if len(word) == 0 || word[0] != prefix {
			continue
		}
		rest := word[1:]
		if strings.IndexByte(rest, prefix) >= 0 {
			continue
		}
		out = append(out, rest)
	}
	return out
}

// StripTags removes the first occurrence of "#tag" for each tag, in order.
// Surrounding whitespace is left alone; tags that are not found are skipped.
func StripTags(text string, tags []string) string {
	for _, tag := range tags {
		token := string(TagPrefix) + tag
		pos := strings.Index(text, token)
		if pos < 0 {
			continue
		}
		text = text[:pos] + text[pos+len(token):]
	}
	return text
}

// Description strips tags from text and trims the result.
func Description(text string, tags []string) string {
	return strings.TrimSpace(StripTags(text, tags))
}
