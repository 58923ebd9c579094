package exclusion

import (
	"time"

	"github.com/nhle/obligations/internal/model"
)

type pair struct {
	clientTaxID string
	templateID  int64
}

// Index is an in-memory snapshot of exclusion records. It is safe for
// concurrent reads.
type Index struct {
	records map[pair]model.ClientExclusion
}

func NewIndex(records []model.ClientExclusion) *Index {
	ix := &Index{records: make(map[pair]model.ClientExclusion, len(records))}
	for _, e := range records {
		ix.records[pair{e.ClientTaxID, e.TemplateID}] = e
	}
	return ix
}

// IsExcluded reports whether the template is suppressed for the client on
// the given day.
func (ix *Index) IsExcluded(clientTaxID string, templateID int64, on time.Time) bool {
	e, ok := ix.records[pair{clientTaxID, templateID}]
	return ok && e.ExcludesOn(on)
}

func (ix *Index) Get(clientTaxID string, templateID int64) (model.ClientExclusion, bool) {
	e, ok := ix.records[pair{clientTaxID, templateID}]
	return e, ok
}

func (ix *Index) Len() int { return len(ix.records) }
