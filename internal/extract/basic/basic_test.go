package basic

import (
	"context"
	"slices"
	"testing"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

type langTable map[string]string

func (t langTable) Code(name string) (string, bool) {
	c, ok := t[name]
	return c, ok
}

var testLangs = langTable{"Finnish": "fi", "English": "en"}

const kettuPage = `==Finnish==

===Etymology===
From {{inh|fi|urj-fin-pro|*kettu}}.

===Noun===
{{fi-noun}}

# [[fox]] {{gloss|animal}}
# {{lb|fi|colloquial}} [[sly]] person
#: {{ux|fi|Hän on kettu.}}
#* quotation line

====Synonyms====
* {{l|fi|repo}}

==English==
===Verb===
# to {{l|en|hunt}} foxes

==Klingon==
===Noun===
# fox

[[Category:fi:Foxes]]
`

func TestExtractPage(t *testing.T) {
	t.Parallel()

	x := New(testLangs)
	res, err := x.ExtractPage(context.Background(), "kettu", kettuPage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}

	fi := res.Entries[0]
	if fi.Word != "kettu" || fi.Lang != "Finnish" || fi.LangCode != "fi" || fi.POS != "noun" {
		t.Errorf("finnish entry = %+v", fi)
	}
	if len(fi.Senses) != 2 {
		t.Fatalf("finnish senses = %d, want 2", len(fi.Senses))
	}
	if got := fi.Senses[0].Glosses; len(got) != 1 || got[0] != "fox" {
		t.Errorf("sense[0].glosses = %v, want [fox]", got)
	}
	if got := fi.Senses[1].Tags; !slices.Contains(got, "colloquial") {
		t.Errorf("sense[1].tags = %v, want colloquial", got)
	}
	if got := fi.Senses[1].Glosses; len(got) != 1 || got[0] != "sly person" {
		t.Errorf("sense[1].glosses = %v, want [sly person]", got)
	}
	if !slices.Equal(fi.Categories, []string{"fi:Foxes"}) {
		t.Errorf("categories = %v", fi.Categories)
	}

	en := res.Entries[1]
	if en.LangCode != "en" || en.POS != "verb" {
		t.Errorf("english entry = %+v", en)
	}
	if got := en.Senses[0].Glosses[0]; got != "to hunt foxes" {
		t.Errorf("english gloss = %q, want %q", got, "to hunt foxes")
	}

	var warned bool
	for _, m := range res.Messages {
		if m.Kind == domain.MessageWarning && m.Section == "Klingon" && m.Title == "kettu" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("expected unknown-language warning, got %+v", res.Messages)
	}

	for _, e := range res.Entries {
		if err := e.Validate(); err != nil {
			t.Errorf("entry %s/%s fails validation: %v", e.Word, e.POS, err)
		}
	}
}

func TestExtractPage_NoGlossFallback(t *testing.T) {
	t.Parallel()

	x := New(testLangs)
	res, err := x.ExtractPage(context.Background(), "foo", "==English==\n===Noun===\n{{en-noun}}\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(res.Entries))
	}
	senses := res.Entries[0].Senses
	if len(senses) != 1 || !slices.Contains(senses[0].Tags, domain.TagNoGloss) {
		t.Errorf("senses = %+v, want one no-gloss sense", senses)
	}
}

func TestExtractPage_EtymologyNumbers(t *testing.T) {
	t.Parallel()

	body := "==English==\n===Etymology 1===\n====Noun====\n# a bank of a river\n===Etymology 2===\n====Noun====\n# a financial bank\n"
	res, err := New(testLangs).ExtractPage(context.Background(), "bank", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(res.Entries))
	}
	if res.Entries[0].EtymologyNumber != 1 || res.Entries[1].EtymologyNumber != 2 {
		t.Errorf("etymology numbers = %d, %d", res.Entries[0].EtymologyNumber, res.Entries[1].EtymologyNumber)
	}
	k0, _ := res.Entries[0].IdentityKey()
	k1, _ := res.Entries[1].IdentityKey()
	if k0 != k1 {
		t.Errorf("homonyms should share an identity key: %v vs %v", k0, k1)
	}
}

func TestExtractPage_EmptyBody(t *testing.T) {
	t.Parallel()

	res, err := New(testLangs).ExtractPage(context.Background(), "empty", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Entries) != 0 || len(res.Messages) != 1 {
		t.Errorf("result = %+v, want no entries and one note", res)
	}
}

func TestExtractPage_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(testLangs).ExtractPage(ctx, "kettu", kettuPage); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

const thesaurusKettu = `==Finnish==
===Noun===
====Sense: fox====
=====Synonyms=====
{{ws beginlist}}
{{ws|fi|repo}}
{{ws|fi|repolainen|q=dialectal,rare}}
{{ws|fi|kettu}}
{{ws endlist}}
=====Hyponyms=====
* [[naali]] (arctic fox)

{{ws sense|fi|sly person}}
=====Synonyms=====
* {{l|fi|veijari}}
`

func TestExtractRelations(t *testing.T) {
	t.Parallel()

	recs, msgs, err := New(testLangs).ExtractRelations(context.Background(), "Thesaurus:kettu", thesaurusKettu)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages = %+v, want none", msgs)
	}

	want := []struct {
		rel    domain.RelationType
		target string
		sense  string
	}{
		{domain.RelationSynonym, "repo", "fox"},
		{domain.RelationSynonym, "repolainen", "fox"},
		{domain.RelationHyponym, "naali", "fox"},
		{domain.RelationSynonym, "veijari", "sly person"},
	}
	if len(recs) != len(want) {
		t.Fatalf("records = %d, want %d: %+v", len(recs), len(want), recs)
	}
	for i, w := range want {
		r := recs[i]
		if r.Relation != w.rel || r.Target != w.target || r.Sense != w.sense {
			t.Errorf("record[%d] = %s/%s/%s, want %s/%s/%s", i, r.Relation, r.Target, r.Sense, w.rel, w.target, w.sense)
		}
		if r.Word != "kettu" || r.Lang != "Finnish" || r.POS != "noun" || r.Source != "Thesaurus:kettu" {
			t.Errorf("record[%d] key = %+v", i, r)
		}
	}
	if !slices.Equal(recs[1].Tags, []string{"dialectal", "rare"}) {
		t.Errorf("record[1].tags = %v", recs[1].Tags)
	}
}

func TestExtractRelations_SubpageAndNoPOS(t *testing.T) {
	t.Parallel()

	body := "==English==\n=====Synonyms=====\n* [[hound]]\n"
	recs, msgs, err := New(testLangs).ExtractRelations(context.Background(), "Thesaurus:dog/more", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("records = %+v, want none outside a POS section", recs)
	}
	if len(msgs) != 1 || msgs[0].Kind != domain.MessageDebug {
		t.Errorf("messages = %+v, want one debug note", msgs)
	}
}

func TestExtractRelations_NoHeadword(t *testing.T) {
	t.Parallel()

	if _, _, err := New(testLangs).ExtractRelations(context.Background(), "Thesaurus:", ""); err == nil {
		t.Fatal("expected error for empty headword")
	}
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"[[fox]]", "fox"},
		{"[[Vulpes|fox]] <b>bold</b>", "fox bold"},
		{"{{lb|en|informal}} a {{l|en|cunning}} person", "a cunning person"},
		{"{{l|en|dog|hound}}", "hound"},
		{"{{gloss|{{l|en|x}}}}", ""},
		{"  spaced   out  ", "spaced out"},
	}
	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHeading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		level int
		text  string
		ok    bool
	}{
		{"==English==", 2, "English", true},
		{"=== Noun ===", 3, "Noun", true},
		{"====Synonyms====", 4, "Synonyms", true},
		{"===Unbalanced==", 2, "=Unbalanced", true},
		{"====", 0, "", false},
		{"# gloss", 0, "", false},
	}
	for _, tt := range tests {
		level, text, ok := Heading(tt.in)
		if level != tt.level || text != tt.text || ok != tt.ok {
			t.Errorf("Heading(%q) = %d, %q, %v; want %d, %q, %v", tt.in, level, text, ok, tt.level, tt.text, tt.ok)
		}
	}
}

func TestDeduplicateStrings(t *testing.T) {
	t.Parallel()

	if DeduplicateStrings(nil) != nil {
		t.Error("nil input should return nil")
	}
	got := DeduplicateStrings([]string{"a", "b", "a", "c", "b"})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("got %v", got)
	}
}
