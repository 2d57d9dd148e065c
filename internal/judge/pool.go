package judge

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/microsoft/chatbench/internal/models"
)

// Pool fans one record out to every judge and every judgeable
// dimension concurrently. The per-client semaphore still bounds total
// in-flight calls.
type Pool struct {
	judges []Scorer
}

// NewPool builds a pool over the given judges.
func NewPool(judges ...Scorer) *Pool {
	return &Pool{judges: judges}
}

// Judges returns the pooled scorers.
func (p *Pool) Judges() []Scorer {
	return p.judges
}

// ScoreRecord collects verdicts for the judgeable dimensions of one
// response from every judge. An unreachable judge cancels the group;
// partial verdicts gathered before the failure are returned with the
// error so the caller can persist them.
func (p *Pool) ScoreRecord(ctx context.Context, base Request, dims []models.Dimension) ([]models.DimensionScore, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var out []models.DimensionScore

	for _, j := range p.judges {
		for _, dim := range dims {
			if !Judgeable(dim) {
				continue
			}
			j, dim := j, dim
			g.Go(func() error {
				req := base
				req.Dimension = dim
				score, err := j.Score(gctx, req)
				if err != nil {
					return err
				}
				mu.Lock()
				out = append(out, score)
				mu.Unlock()
				return nil
			})
		}
	}

	err := g.Wait()
	return out, err
}
