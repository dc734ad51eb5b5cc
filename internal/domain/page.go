package domain

import "strings"

// Page is one page read from the corpus. It is owned by the pass that reads
// it and is not retained after that pass's callback returns.
type Page struct {
	Title      string
	Namespace  int
	Model      ContentModel
	RedirectTo string
	Body       string
}

// IsRedirect reports whether the page only points at another page.
func (p Page) IsRedirect() bool {
	return p.Model == ContentModelRedirect || p.RedirectTo != ""
}

// NamespacePrefix returns the part of the title before the first colon,
// or "" when the title has none.
func (p Page) NamespacePrefix() string {
	return TitlePrefix(p.Title)
}

// TitlePrefix returns the part of title before the first colon.
func TitlePrefix(title string) string {
	idx := strings.IndexByte(title, ':')
	if idx <= 0 {
		return ""
	}
	return title[:idx]
}

// TitleWithoutPrefix strips a leading "Namespace:" from title.
func TitleWithoutPrefix(title string) string {
	idx := strings.IndexByte(title, ':')
	if idx <= 0 {
		return title
	}
	return title[idx+1:]
}

// PageQuery selects pages for a reprocessing walk.
type PageQuery struct {
	// Namespaces by name; "Main" is the unnamed article namespace.
	Namespaces       []string
	IncludeRedirects bool
}

// Namespace maps a namespace name to its numeric id in the corpus.
type Namespace struct {
	ID   int
	Name string
}
