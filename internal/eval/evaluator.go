package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
)

// #region config

// Config is the evaluation roster and scheduling.
type Config struct {
	Models  []string
	Seed    int64
	Workers int
}

// ResultWriter is the part of the result store the evaluator needs.
// Append must be safe for concurrent use.
type ResultWriter interface {
	Append(rec bench.EvaluationRecord) (bool, error)
	Has(model, pairID string) bool
}

// Report summarises one evaluation run.
type Report struct {
	Pending   int
	Evaluated int
	Correct   int
	Invalid   int
	Failed    int // combinations left for the next run
}

// #endregion config

// #region evaluator

// Evaluator asks every model in the roster about every pair once.
type Evaluator struct {
	results ResultWriter
	api     llm.Completer
	cfg     Config
	logger  *zap.Logger
}

// NewEvaluator validates cfg and returns an evaluator.
func NewEvaluator(results ResultWriter, api llm.Completer, cfg Config, logger *zap.Logger) (*Evaluator, error) {
	if len(cfg.Models) == 0 {
		return nil, errors.New("model roster is empty")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{results: results, api: api, cfg: cfg, logger: logger.Named("eval")}, nil
}

// Combination is one (model, pair) unit of work.
type Combination struct {
	Model string
	Pair  bench.MinimalPair
	Order bench.Order
}

// Pending returns the combinations without a persisted record, roster
// order first and pair order second.
func (e *Evaluator) Pending(pairs []bench.MinimalPair) []Combination {
	var out []Combination
	for _, model := range e.cfg.Models {
		for _, pair := range pairs {
			if e.results.Has(model, pair.ID) {
				continue
			}
			out = append(out, Combination{Model: model, Pair: pair, Order: OrderFor(e.cfg.Seed, model, pair.ID)})
		}
	}
	return out
}

// Run evaluates every pending combination. Exhausted credentials stop the
// run; a combination whose call fails is skipped and picked up next time.
func (e *Evaluator) Run(ctx context.Context, pairs []bench.MinimalPair) (Report, error) {
	pending := e.Pending(pairs)
	report := Report{Pending: len(pending)}
	e.logger.Info("evaluation starting",
		zap.Int("pending", len(pending)),
		zap.Int("models", len(e.cfg.Models)),
		zap.Int("pairs", len(pairs)),
		zap.Int("workers", e.cfg.Workers))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for _, c := range pending {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := e.evaluate(gctx, c)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, llm.ErrCallExhausted):
				report.Failed++
				e.logger.Warn("skipping combination after failed call",
					zap.String("model", c.Model),
					zap.String("pair_id", c.Pair.ID),
					zap.Error(err))
				return nil
			case err != nil:
				return err
			}
			report.Evaluated++
			if rec.Correct {
				report.Correct++
			}
			if rec.Choice == bench.ChoiceInvalid {
				report.Invalid++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, credentials.ErrCredentialsExhausted) {
			e.logger.Error("credentials exhausted, stopping", zap.Int("evaluated", report.Evaluated))
		}
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	e.logger.Info("evaluation finished",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("invalid", report.Invalid),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (e *Evaluator) evaluate(ctx context.Context, c Combination) (bench.EvaluationRecord, error) {
	resp, err := e.api.Call(ctx, llm.Request{
		Purpose: llm.PurposeEvaluate,
		Model:   c.Model,
		Prompt:  FormatPrompt(c.Pair, c.Order),
	})
	if err != nil {
		return bench.EvaluationRecord{}, fmt.Errorf("evaluate %s on %s: %w", c.Model, c.Pair.ID, err)
	}
	rec := Score(c.Model, c.Pair, c.Order, resp.Text)
	if rec.Choice == bench.ChoiceInvalid {
		e.logger.Debug("invalid answer",
			zap.String("model", c.Model),
			zap.String("pair_id", c.Pair.ID),
			zap.String("response", resp.Text))
	}
	if _, err := e.results.Append(rec); err != nil {
		return bench.EvaluationRecord{}, fmt.Errorf("persist result %s: %w", rec.Key(), err)
	}
	return rec, nil
}

// #endregion evaluator
