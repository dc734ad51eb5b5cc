// Package dump streams pages out of a MediaWiki XML export, optionally
// bzip2-compressed.
package dump

import (
	"bufio"
	"compress/bzip2"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// Namespace is one entry of the dump's siteinfo namespace table.
type Namespace struct {
	ID   int
	Name string
}

// SiteInfo is the header of a dump.
type SiteInfo struct {
	SiteName   string
	DBName     string
	Namespaces []Namespace
}

type xmlSiteInfo struct {
	SiteName   string `xml:"sitename"`
	DBName     string `xml:"dbname"`
	Namespaces []struct {
		Key  int    `xml:"key,attr"`
		Name string `xml:",chardata"`
	} `xml:"namespaces>namespace"`
}

type xmlPage struct {
	Title    string `xml:"title"`
	NS       int    `xml:"ns"`
	Redirect *struct {
		Title string `xml:"title,attr"`
	} `xml:"redirect"`
	Revision struct {
		Model string `xml:"model"`
		Text  string `xml:"text"`
	} `xml:"revision"`
}

// Reader decodes pages one at a time. It is not safe for concurrent use.
type Reader struct {
	dec    *xml.Decoder
	closer io.Closer
	site   SiteInfo
	pages  int
}

// Open opens a dump file. Files ending in ".bz2" are decompressed on the fly.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCorpusUnreadable, err)
	}

	var src io.Reader = bufio.NewReaderSize(f, 1<<20)
	if strings.HasSuffix(path, ".bz2") {
		src = bzip2.NewReader(src)
	}

	r := NewReader(src)
	r.closer = f
	return r, nil
}

// NewReader wraps an uncompressed XML stream.
func NewReader(src io.Reader) *Reader {
	dec := xml.NewDecoder(src)
	dec.Strict = false
	return &Reader{dec: dec}
}

// SiteInfo returns the header seen so far. It is populated once the first
// page has been read.
func (r *Reader) SiteInfo() SiteInfo { return r.site }

// Pages returns the number of pages decoded so far.
func (r *Reader) Pages() int { return r.pages }

// Next returns the next page. It returns io.EOF after the last page.
// Any other error wraps domain.ErrCorpusUnreadable.
func (r *Reader) Next() (domain.Page, error) {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return domain.Page{}, io.EOF
		}
		if err != nil {
			return domain.Page{}, fmt.Errorf("%w: after %d pages: %w", domain.ErrCorpusUnreadable, r.pages, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "siteinfo":
			var si xmlSiteInfo
			if err := r.dec.DecodeElement(&si, &start); err != nil {
				return domain.Page{}, fmt.Errorf("%w: siteinfo: %w", domain.ErrCorpusUnreadable, err)
			}
			r.site = toSiteInfo(si)
		case "page":
			var p xmlPage
			if err := r.dec.DecodeElement(&p, &start); err != nil {
				return domain.Page{}, fmt.Errorf("%w: page %d: %w", domain.ErrCorpusUnreadable, r.pages+1, err)
			}
			r.pages++
			return toPage(p), nil
		}
	}
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func toSiteInfo(si xmlSiteInfo) SiteInfo {
	out := SiteInfo{SiteName: si.SiteName, DBName: si.DBName}
	for _, ns := range si.Namespaces {
		name := strings.TrimSpace(ns.Name)
		if ns.Key == domain.MainNamespaceID && name == "" {
			name = domain.MainNamespace
		}
		out.Namespaces = append(out.Namespaces, Namespace{ID: ns.Key, Name: name})
	}
	return out
}

func toPage(p xmlPage) domain.Page {
	page := domain.Page{
		Title:     p.Title,
		Namespace: p.NS,
		Body:      p.Revision.Text,
	}

	switch {
	case p.Redirect != nil && p.Redirect.Title != "":
		page.Model = domain.ContentModelRedirect
		page.RedirectTo = p.Redirect.Title
	case strings.EqualFold(p.Revision.Model, "scribunto") || p.NS == domain.ModuleNamespace:
		page.Model = domain.ContentModelScribunto
	case p.Revision.Model == "" || p.Revision.Model == "wikitext":
		page.Model = domain.ContentModelWikitext
	default:
		page.Model = domain.ContentModelOther
	}
	return page
}
