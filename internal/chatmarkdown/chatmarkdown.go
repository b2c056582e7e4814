// Package chatmarkdown converts common markdown into the escaped dialect
// the chat API expects (spec §6): the set
// _ * [ ] ( ) ~ ` > # + - = | { } . !  \
// is escaped outside of link targets, URLs inside [text](url) are left
// unescaped, and headings become bold-underline text.
package chatmarkdown

import "strings"

const specialChars = "_*[]()~`>#+-=|{}.!\\"

// Convert renders body (common markdown) into the chat-markdown dialect.
func Convert(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = convertLine(line)
	}
	return strings.Join(lines, "\n")
}

func convertLine(line string) string {
	if heading, ok := stripHeading(line); ok {
		return "*__" + escapeOutsideLinks(heading) + "__*"
	}
	return escapeOutsideLinks(line)
}

func stripHeading(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
		return "", false
	}
	return strings.TrimSpace(trimmed[level:]), true
}

// escapeOutsideLinks escapes specialChars everywhere except inside the
// "(url)" half of a [text](url) link, which chat clients require verbatim.
func escapeOutsideLinks(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if linkText, url, n, ok := parseLink(s[i:]); ok {
			b.WriteString("[")
			b.WriteString(escapeRunes(linkText))
			b.WriteString("](")
			b.WriteString(url)
			b.WriteString(")")
			i += n
			continue
		}
		b.WriteString(escapeRune(rune(s[i])))
		i++
	}
	return b.String()
}

// parseLink recognizes a [text](url) construct at the start of s.
func parseLink(s string) (text, url string, consumed int, ok bool) {
	if len(s) == 0 || s[0] != '[' {
		return "", "", 0, false
	}
	close1 := strings.Index(s, "]")
	if close1 == -1 || close1+1 >= len(s) || s[close1+1] != '(' {
		return "", "", 0, false
	}
	close2 := strings.Index(s[close1+2:], ")")
	if close2 == -1 {
		return "", "", 0, false
	}
	text = s[1:close1]
	url = s[close1+2 : close1+2+close2]
	consumed = close1 + 2 + close2 + 1
	return text, url, consumed, true
}

func escapeRunes(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(escapeRune(r))
	}
	return b.String()
}

func escapeRune(r rune) string {
	if strings.ContainsRune(specialChars, r) {
		return "\\" + string(r)
	}
	return string(r)
}
