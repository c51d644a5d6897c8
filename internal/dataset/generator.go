package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/bench"
	"github.com/danielpatrickdp/norse-minpairs/internal/corpus"
	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
	"github.com/danielpatrickdp/norse-minpairs/internal/phenomena"
)

// #region types

// PairWriter is the part of the pair store the generator needs.
type PairWriter interface {
	Append(p bench.MinimalPair) (bool, error)
	Pairs() []bench.MinimalPair
}

// Status of one phenomenon during generation.
type Status string

const (
	NeedsMore Status = "needs_more"
	Satisfied Status = "satisfied"
)

// Config fixes the generation model and the per-phenomenon targets.
type Config struct {
	Model   string
	Targets map[bench.Phenomenon]int
}

// Report summarises one generation run.
type Report struct {
	Counts        map[bench.Phenomenon]int // persisted, including earlier runs
	Added         map[bench.Phenomenon]int
	Targets       map[bench.Phenomenon]int
	Sentences     int
	Calls         int
	NotApplicable int
	Malformed     int
	Failed        int // calls that exhausted their retry budget
	Duplicates    int
}

// Shortfall returns how many pairs each under-filled phenomenon is missing.
func (r Report) Shortfall() map[bench.Phenomenon]int {
	out := map[bench.Phenomenon]int{}
	for _, p := range bench.Phenomena {
		if d := r.Targets[p] - r.Counts[p]; d > 0 {
			out[p] = d
		}
	}
	return out
}

// Complete reports whether every target was reached.
func (r Report) Complete() bool {
	return len(r.Shortfall()) == 0
}

// #endregion types

// #region generator

// Generator turns corpus sentences into minimal pairs until every
// phenomenon reaches its target.
type Generator struct {
	store  PairWriter
	api    llm.Completer
	cfg    Config
	logger *zap.Logger

	counts map[bench.Phenomenon]int
	next   map[bench.Phenomenon]int
	seen   map[bench.Phenomenon]map[string]bool
}

// NewGenerator seeds counters from the pairs already in store.
func NewGenerator(store PairWriter, api llm.Completer, cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.Model == "" {
		return nil, errors.New("generation model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		store:  store,
		api:    api,
		cfg:    cfg,
		logger: logger.Named("generate"),
		counts: map[bench.Phenomenon]int{},
		next:   map[bench.Phenomenon]int{},
		seen:   map[bench.Phenomenon]map[string]bool{},
	}
	for _, p := range bench.Phenomena {
		g.seen[p] = map[string]bool{}
	}
	for _, pair := range store.Pairs() {
		g.counts[pair.Phenomenon]++
		g.seen[pair.Phenomenon][sentenceKey(pair.Grammatical)] = true
		if _, n, err := bench.ParsePairID(pair.ID); err == nil && n > g.next[pair.Phenomenon] {
			g.next[pair.Phenomenon] = n
		}
	}
	return g, nil
}

// Status reports whether p still needs pairs.
func (g *Generator) Status(p bench.Phenomenon) Status {
	if g.counts[p] < g.cfg.Targets[p] {
		return NeedsMore
	}
	return Satisfied
}

func (g *Generator) satisfied() bool {
	for _, p := range bench.Phenomena {
		if g.Status(p) == NeedsMore {
			return false
		}
	}
	return true
}

// Run consumes src in order. It stops when all phenomena are satisfied or
// the source is drained; a drained source with unmet targets is reported,
// not returned as an error. Exhausted credentials abort the run.
func (g *Generator) Run(ctx context.Context, src corpus.Source) (report Report, err error) {
	report = Report{Added: map[bench.Phenomenon]int{}, Targets: g.cfg.Targets}
	defer func() { report.Counts = copyCounts(g.counts) }()

	if g.satisfied() {
		g.logger.Info("all targets already met")
		return report, nil
	}

	for sentence, readErr := range src.Sentences(ctx) {
		if readErr != nil {
			return report, fmt.Errorf("read corpus: %w", readErr)
		}
		report.Sentences++

		for _, p := range phenomena.Eligible(sentence) {
			if g.Status(p) == Satisfied || g.seen[p][sentenceKey(sentence)] {
				continue
			}
			if err := g.attempt(ctx, p, sentence, &report); err != nil {
				return report, err
			}
		}
		if g.satisfied() {
			break
		}
	}

	g.logger.Info("generation finished",
		zap.Int("sentences", report.Sentences),
		zap.Int("calls", report.Calls),
		zap.Any("counts", g.counts))
	if short := report.Shortfall(); len(short) > 0 {
		g.logger.Warn("corpus exhausted before targets were met", zap.Any("shortfall", short))
	}
	return report, nil
}

// attempt makes one API call for (p, sentence) and persists the pair if
// the response is usable. Only fatal errors are returned.
func (g *Generator) attempt(ctx context.Context, p bench.Phenomenon, sentence string, report *Report) error {
	prompt, err := phenomena.Prompt(p, sentence)
	if err != nil {
		return err
	}
	report.Calls++
	resp, err := g.api.Call(ctx, llm.Request{Purpose: llm.PurposeGenerate, Model: g.cfg.Model, Prompt: prompt})
	switch {
	case errors.Is(err, credentials.ErrCredentialsExhausted):
		return fmt.Errorf("generate %s: %w", p, err)
	case errors.Is(err, llm.ErrCallExhausted):
		report.Failed++
		g.logger.Warn("skipping sentence after failed call",
			zap.String("phenomenon", string(p)),
			zap.String("sentence", sentence),
			zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("generate %s: %w", p, err)
	}
	// The sentence was tried for p; do not spend another call on it.
	g.seen[p][sentenceKey(sentence)] = true

	switch res := phenomena.ParseGeneration(resp.Text).(type) {
	case phenomena.NotApplicable:
		report.NotApplicable++
	case phenomena.Malformed:
		report.Malformed++
		g.logger.Debug("malformed generation response",
			zap.String("phenomenon", string(p)),
			zap.String("reason", res.Reason),
			zap.String("raw", res.Raw))
	case phenomena.Applicable:
		key := sentenceKey(res.Grammatical)
		if key != sentenceKey(sentence) && g.seen[p][key] {
			report.Duplicates++
			return nil
		}
		pair := bench.MinimalPair{
			ID:            bench.PairID(p, g.next[p]+1),
			Phenomenon:    p,
			Grammatical:   res.Grammatical,
			Ungrammatical: res.Ungrammatical,
			Target:        res.Target,
			ErrorType:     res.ErrorType,
		}
		added, err := g.store.Append(pair)
		if err != nil {
			return fmt.Errorf("persist pair %s: %w", pair.ID, err)
		}
		if !added {
			report.Duplicates++
			return nil
		}
		g.next[p]++
		g.counts[p]++
		g.seen[p][key] = true
		report.Added[p]++
		g.logger.Info("pair added",
			zap.String("id", pair.ID),
			zap.Int("count", g.counts[p]),
			zap.Int("target", g.cfg.Targets[p]))
	}
	return nil
}

// #endregion generator

// #region helpers

// sentenceKey compares a corpus sentence with the model's echo of it: the
// echo may be quoted and usually carries the terminator Segment removed.
func sentenceKey(s string) string {
	s = strings.Join(strings.Fields(corpus.Normalize(s)), " ")
	s = strings.Trim(s, echoQuotes)
	s = strings.TrimRight(s, ".:;!? ")
	return strings.Trim(s, echoQuotes)
}

const echoQuotes = "\"'“”„«» "

func copyCounts(m map[bench.Phenomenon]int) map[bench.Phenomenon]int {
	out := make(map[bench.Phenomenon]int, len(bench.Phenomena))
	for _, p := range bench.Phenomena {
		out[p] = m[p]
	}
	return out
}

// #endregion helpers
