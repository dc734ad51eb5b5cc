package basic

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	wikiLinkRe   = regexp.MustCompile(`\[\[([^|\]]*\|)?([^\]]*)\]\]`)
	templateRe   = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	categoryRe   = regexp.MustCompile(`\[\[Category:([^|\]]+)(\|[^\]]*)?\]\]`)
)

// linkTemplates render their second positional argument as the link text.
var linkTemplates = map[string]bool{
	"l": true, "m": true, "link": true, "mention": true, "ll": true, "ws": true,
}

// labelTemplates carry qualifier tags instead of visible text.
var labelTemplates = map[string]bool{
	"lb": true, "lbl": true, "label": true, "q": true, "qualifier": true, "i": true,
}

// Template is one parsed {{name|arg|key=value}} invocation.
type Template struct {
	Name  string
	Args  []string
	Named map[string]string
}

// Arg returns the i-th positional argument or "".
func (t Template) Arg(i int) string {
	if i < 0 || i >= len(t.Args) {
		return ""
	}
	return t.Args[i]
}

// ParseTemplate parses the inside of a non-nested template invocation.
func ParseTemplate(inner string) Template {
	parts := strings.Split(inner, "|")
	t := Template{Name: strings.ToLower(strings.TrimSpace(parts[0]))}
	for _, p := range parts[1:] {
		if k, v, ok := strings.Cut(p, "="); ok && !strings.ContainsAny(k, "[{") {
			if t.Named == nil {
				t.Named = make(map[string]string)
			}
			t.Named[strings.TrimSpace(k)] = strings.TrimSpace(v)
			continue
		}
		t.Args = append(t.Args, strings.TrimSpace(p))
	}
	return t
}

// Templates returns every innermost template invocation in s, in order.
func Templates(s string) []Template {
	var out []Template
	for _, m := range templateRe.FindAllStringSubmatch(s, -1) {
		out = append(out, ParseTemplate(m[1]))
	}
	return out
}

// StripMarkup removes templates, HTML tags and wiki-style links from s,
// collapses multiple spaces, and trims whitespace. Link templates keep their
// link text; label templates are dropped.
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}

	// Innermost templates first, until none remain.
	for i := 0; i < 8 && strings.Contains(s, "{{"); i++ {
		next := templateRe.ReplaceAllStringFunc(s, func(m string) string {
			t := ParseTemplate(m[2 : len(m)-2])
			if linkTemplates[t.Name] {
				if alt := t.Arg(2); alt != "" {
					return alt
				}
				return t.Arg(1)
			}
			return ""
		})
		if next == s {
			break
		}
		s = next
	}

	s = htmlTagRe.ReplaceAllString(s, "")
	s = wikiLinkRe.ReplaceAllString(s, "$2")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, " \t,;")

	return s
}

// LabelTags returns the qualifier tags found in label templates of s.
func LabelTags(s string) []string {
	var tags []string
	for _, t := range Templates(s) {
		if !labelTemplates[t.Name] {
			continue
		}
		args := t.Args
		// {{lb|en|informal}}: the first argument is the language code.
		if (t.Name == "lb" || t.Name == "lbl" || t.Name == "label") && len(args) > 0 {
			args = args[1:]
		}
		for _, a := range args {
			if a == "" || a == "_" || a == "and" || a == "or" {
				continue
			}
			tags = append(tags, a)
		}
	}
	return DeduplicateStrings(tags)
}

// Categories returns the category names linked from body.
func Categories(body string) []string {
	var out []string
	for _, m := range categoryRe.FindAllStringSubmatch(body, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return DeduplicateStrings(out)
}

// DeduplicateStrings returns a new slice with duplicate strings removed,
// preserving the order of first occurrence. Returns nil for nil input.
func DeduplicateStrings(ss []string) []string {
	if ss == nil {
		return nil
	}

	seen := make(map[string]struct{}, len(ss))
	result := make([]string, 0, len(ss))

	for _, s := range ss {
		if _, exists := seen[s]; exists {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}

	return result
}

// Heading parses a "==Title==" line and returns its level and text.
func Heading(line string) (level int, text string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "==") || !strings.HasSuffix(line, "==") {
		return 0, "", false
	}
	for level < len(line) && line[level] == '=' {
		level++
	}
	closing := 0
	for closing < len(line)-level && line[len(line)-1-closing] == '=' {
		closing++
	}
	level = min(level, closing)
	if level < 2 || len(line) <= 2*level {
		return 0, "", false
	}
	return level, strings.TrimSpace(line[level : len(line)-level]), true
}
