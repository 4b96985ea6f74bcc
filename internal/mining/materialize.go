package mining

import (
	"fmt"

	"github.com/jwhitaker/patternmine/internal/database"
)

// MaterializeResult reports what a persistence pass did.
type MaterializeResult struct {
	Created int
	Updated int
	Errors  []string
}

// Materializer writes validated insights into the database. A failure on
// one insight is recorded and does not stop the rest of the batch.
type Materializer struct {
	db *database.DB
}

func NewMaterializer(db *database.DB) *Materializer {
	return &Materializer{db: db}
}

func (m *Materializer) Persist(insights []database.Insight) MaterializeResult {
	var res MaterializeResult
	for i := range insights {
		created, err := m.db.UpsertInsight(&insights[i])
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("persist %s/%s: %v", insights[i].Type, insights[i].PatternKey, err))
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res
}
