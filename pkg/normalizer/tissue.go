package normalizer

import (
	"regexp"

	"github.com/ncats/biggim-gateway/pkg/reference"
)

var (
	uberonPattern = regexp.MustCompile(`^UBERON[:_]\d+$`)
	btoPattern    = regexp.MustCompile(`^BTO[:_]\d+$`)
)

// TissueResolver maps external ontology tissue codes to BigGIM tissue labels.
type TissueResolver struct {
	byUberon map[string]string
	byBTO    map[string]string
}

// NewTissueResolver indexes the synonym table. Entries are applied in order,
// so a duplicated id resolves to the label of its last entry.
func NewTissueResolver(tissues []reference.Tissue) *TissueResolver {
	r := &TissueResolver{
		byUberon: make(map[string]string),
		byBTO:    make(map[string]string),
	}
	for _, t := range tissues {
		if t.UberonID != nil && *t.UberonID != "" {
			r.byUberon[*t.UberonID] = t.Label
		}
		if t.BTOID != nil && *t.BTOID != "" {
			r.byBTO[*t.BTOID] = t.Label
		}
	}
	return r
}

// Resolve returns the BigGIM label for an UBERON or BTO code. Anything it
// cannot resolve is returned unchanged.
func (r *TissueResolver) Resolve(identifier string) string {
	resolved := identifier
	if uberonPattern.MatchString(resolved) {
		if label, ok := r.byUberon[resolved]; ok {
			resolved = label
		}
	}
	if btoPattern.MatchString(resolved) {
		if label, ok := r.byBTO[resolved]; ok {
			resolved = label
		}
	}
	return resolved
}
