package crossservice

import (
	"context"

	"github.com/goccy/go-json"

	"sustainable-advisor/internal/ranking"
)

// LocalTransport ranks in-process with a ranking.Engine. The result goes
// through the same wire encoding as a remote collaborator's answer.
type LocalTransport struct {
	engine *ranking.Engine
}

func NewLocalTransport(engine *ranking.Engine) *LocalTransport {
	return &LocalTransport{engine: engine}
}

func (t *LocalTransport) Name() string {
	return "local"
}

// Rank implements Transport.
func (t *LocalTransport) Rank(ctx context.Context, req RankRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	products, scores := req.Candidates()
	candidates := make([]ranking.Candidate, 0, len(products))
	for i, p := range products {
		candidates = append(candidates, ranking.NewCandidate(p, scores[i]))
	}

	results := t.engine.Rank(candidates, req.UserPreferences, ranking.Options{})
	return json.Marshal(map[string]interface{}{
		"ranked_products": ranking.Records(results),
		"ranked_by":       RankedByCollaborator,
	})
}
