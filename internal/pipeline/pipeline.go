package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwhitaker/patternmine/internal/config"
	"github.com/jwhitaker/patternmine/internal/database"
	"github.com/jwhitaker/patternmine/internal/market"
	"github.com/jwhitaker/patternmine/internal/mining"
)

// spikeCountWindow bounds how far back the aggregator counts flagged
// listings when scoring entry opportunities.
const spikeCountWindow = 7 * 24 * time.Hour

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID    string
	Steps    []StepResult
	Created  int
	Updated  int
	Rejected int
	Elapsed  time.Duration
	Errors   []string
	Skipped  bool
}

// Pipeline orchestrates the 4-step mining run: pattern mining, niche
// aggregation, rank-spike detection, and fusion scoring. Step failures
// are collected and never abort the remaining steps.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB

	// insights mined this run, input to the fusion step.
	mined []database.Insight
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes the full 4-step pipeline and persists a run report.
func (p *Pipeline) Run(ctx context.Context) *Result {
	start := time.Now().UTC()
	r := &Result{RunID: uuid.NewString()}

	batch, err := p.loadBatch(start)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Mine", Err: err})
		r.Errors = append(r.Errors, err.Error())
		return r
	}
	if len(batch) < p.cfg.Mining.MinBatchSize {
		r.Skipped = true
		r.Steps = append(r.Steps, StepResult{
			Name:    "Mine",
			Summary: fmt.Sprintf("Skipped: %d observations, need %d", len(batch), p.cfg.Mining.MinBatchSize),
		})
		return r
	}

	step := p.runMine(ctx, r, batch)
	r.Steps = append(r.Steps, step)

	step = p.runAggregate(r)
	r.Steps = append(r.Steps, step)

	step = p.runSpikes(r, start)
	r.Steps = append(r.Steps, step)

	step = p.runFusion(r, start)
	r.Steps = append(r.Steps, step)

	r.Elapsed = time.Since(start)
	report := &database.RunReport{
		ID:        r.RunID,
		StartedAt: start,
		Duration:  r.Elapsed,
		Created:   r.Created,
		Updated:   r.Updated,
		Rejected:  r.Rejected,
		Errors:    r.Errors,
	}
	if err := p.db.InsertRunReport(report); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("persist run report: %v", err))
	}
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	now := time.Now().UTC()
	r := &Result{RunID: "dry-run"}

	batch, err := p.loadBatch(now)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Mine", Err: err})
		return r
	}
	if len(batch) < p.cfg.Mining.MinBatchSize {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Mine",
			Summary: fmt.Sprintf("[dry-run] would skip: %d observations, need %d", len(batch), p.cfg.Mining.MinBatchSize),
		})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Mine",
		Summary: fmt.Sprintf("[dry-run] %d observations would feed %d miners", len(batch), len(p.miners())),
	})

	niches, _ := p.db.ListNiches()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("[dry-run] %d niches would be re-analyzed", len(niches)),
	})

	var listings int
	for _, niche := range niches {
		ls, _ := p.db.GetListingsForNiche(niche)
		listings += len(ls)
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Spikes",
		Summary: fmt.Sprintf("[dry-run] %d listings would be rank-checked", listings),
	})

	candidates, _ := p.db.ListFusionCandidates()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Fusion",
		Summary: fmt.Sprintf("[dry-run] %d existing fusion candidates would be refreshed", len(candidates)),
	})
	return r
}

func (p *Pipeline) loadBatch(now time.Time) ([]database.Observation, error) {
	since := now.AddDate(0, 0, -p.cfg.Mining.LookbackDays)
	batch, err := p.db.GetObservationBatch(since, p.cfg.Mining.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("load observation batch: %w", err)
	}
	return batch, nil
}

func (p *Pipeline) miners() []mining.Miner {
	v := mining.NewValidator(p.cfg.Mining)
	return []mining.Miner{
		mining.NewPhraseMiner(v),
		mining.NewStyleMiner(v),
		mining.NewTimingMiner(),
		mining.NewStructureMiner(v),
		mining.NewCooccurMiner(),
	}
}

// runMine fans the miners out over the batch and materializes whatever
// validates.
func (p *Pipeline) runMine(ctx context.Context, r *Result, batch []database.Observation) StepResult {
	log.Printf("Step 1/4: Mining %d observations...", len(batch))

	miners := p.miners()
	results := make([]mining.Result, len(miners))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Mining.Workers)
	for i, m := range miners {
		i, m := i, m
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = m.Mine(batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("mining: %v", err))
		return StepResult{Name: "Mine", Err: err}
	}

	var insights []database.Insight
	var candidates int
	for _, res := range results {
		candidates += res.Candidates
		r.Rejected += res.Rejected
		insights = append(insights, res.Insights...)
	}
	p.mined = insights

	mat := mining.NewMaterializer(p.db).Persist(insights)
	r.Created += mat.Created
	r.Updated += mat.Updated
	r.Errors = append(r.Errors, mat.Errors...)

	return StepResult{
		Name: "Mine",
		Summary: fmt.Sprintf("%d candidates: %d rejected, %d insights created, %d refreshed",
			candidates, r.Rejected, mat.Created, mat.Updated),
	}
}

// runAggregate recomputes every known niche's market aggregate. Niches
// are the union of listing niches and observation niches.
func (p *Pipeline) runAggregate(r *Result) StepResult {
	log.Println("Step 2/4: Aggregating niches...")

	counts, err := p.db.CountObservationsByNiche()
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("aggregate: %v", err))
		return StepResult{Name: "Aggregate", Err: err}
	}
	listed, err := p.db.ListNiches()
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("aggregate: %v", err))
		return StepResult{Name: "Aggregate", Err: err}
	}

	var niches []string
	seen := make(map[string]bool)
	for _, n := range listed {
		if !seen[n] {
			seen[n] = true
			niches = append(niches, n)
		}
	}
	for n := range counts {
		n = strings.ToLower(n)
		if !seen[n] {
			seen[n] = true
			niches = append(niches, n)
		}
	}

	agg := market.NewAggregator(p.db)
	now := time.Now().UTC()
	var analyzed int
	for _, niche := range niches {
		if _, err := agg.AnalyzeNiche(niche, counts[niche], now, spikeCountWindow); err != nil {
			r.Errors = append(r.Errors, err.Error())
			continue
		}
		analyzed++
	}
	return StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Analyzed %d of %d niches", analyzed, len(niches)),
	}
}

// runSpikes feeds every listing's current sales rank through the spike
// detector.
func (p *Pipeline) runSpikes(r *Result, now time.Time) StepResult {
	log.Println("Step 3/4: Checking sales ranks...")

	niches, err := p.db.ListNiches()
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("spikes: %v", err))
		return StepResult{Name: "Spikes", Err: err}
	}

	detector := market.NewSpikeDetector(p.db)
	var checked, spikes int
	for _, niche := range niches {
		listings, err := p.db.GetListingsForNiche(niche)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("spikes: %v", err))
			continue
		}
		for _, l := range listings {
			if l.SalesRank <= 0 {
				continue
			}
			checked++
			res, err := detector.Record(l.ExtID, l.SalesRank, now)
			if err != nil {
				r.Errors = append(r.Errors, err.Error())
				continue
			}
			if res.Spike {
				spikes++
			}
		}
	}
	return StepResult{
		Name:    "Spikes",
		Summary: fmt.Sprintf("Checked %d ranks, %d spikes", checked, spikes),
	}
}

// runFusion scores the niche pairs surfaced by this run's co-occurrence
// mining.
func (p *Pipeline) runFusion(r *Result, now time.Time) StepResult {
	log.Println("Step 4/4: Scoring niche fusions...")

	scorer := market.NewFusionScorer(p.db, p.cfg.Market.MinFusionListings)
	var scored, thin int
	for _, in := range p.mined {
		if in.Type != mining.TypeNicheFusion || len(in.Niches) != 2 {
			continue
		}
		f, err := scorer.Score(in.Niches[0], in.Niches[1], fusionQuery(in), now)
		if err != nil {
			r.Errors = append(r.Errors, err.Error())
			continue
		}
		if f == nil {
			thin++
			continue
		}
		scored++
	}
	return StepResult{
		Name:    "Fusion",
		Summary: fmt.Sprintf("Scored %d pairs, %d lacked listings", scored, thin),
	}
}

// fusionQuery pulls the first suggested phrase out of a niche-fusion
// payload, falling back to the joined niches.
func fusionQuery(in database.Insight) string {
	var payload struct {
		FusionPhrases []string `json:"fusionPhrases"`
	}
	if err := json.Unmarshal(in.Payload, &payload); err == nil && len(payload.FusionPhrases) > 0 {
		return payload.FusionPhrases[0]
	}
	return strings.Join(in.Niches, " ")
}
