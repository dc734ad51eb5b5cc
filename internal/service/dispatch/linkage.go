package dispatch

import (
	"slices"

	"github.com/heartmarshall/wiktlex/internal/domain"
)

// injectLinkages attaches the thesaurus relations recorded for e's word and
// language whose part of speech matches e. A record goes to the sense whose
// gloss equals its sense text, otherwise to the first sense. Targets already
// linked under the same relation and sense are skipped. It returns the number
// of linkages added.
func injectLinkages(e *domain.Entry, rel RelationLookup) int {
	if e.Word == "" || e.POS == "" || len(e.Senses) == 0 {
		return 0
	}

	added := 0
	for _, r := range rel.Records(domain.XRefKey{Word: e.Word, Lang: e.Lang}) {
		if r.POS != e.POS || r.Target == "" || hasLinkage(e.Senses, r) {
			continue
		}
		l := r.Linkage()
		l.Sense = r.Sense
		e.Senses[senseIndex(e.Senses, r.Sense)].AddLinkage(r.Relation, l)
		added++
	}
	return added
}

func senseIndex(senses []domain.Sense, text string) int {
	if text != "" {
		for i := range senses {
			if slices.Contains(senses[i].Glosses, text) {
				return i
			}
		}
	}
	return 0
}

// hasLinkage reports whether r's target is already linked under r's relation
// with a compatible sense. A record without sense text matches any sense.
func hasLinkage(senses []domain.Sense, r domain.RelationRecord) bool {
	rt := r.Relation
	if !rt.IsValid() {
		rt = domain.RelationRelated
	}
	for i := range senses {
		for _, l := range senses[i].Linkages()[rt] {
			if l.Word != r.Target {
				continue
			}
			if r.Sense == "" || l.Sense == r.Sense || slices.Contains(senses[i].Glosses, r.Sense) {
				return true
			}
		}
	}
	return false
}
