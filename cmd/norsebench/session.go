package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norse-minpairs/internal/credentials"
	"github.com/danielpatrickdp/norse-minpairs/internal/ledger"
	"github.com/danielpatrickdp/norse-minpairs/internal/llm"
	"github.com/danielpatrickdp/norse-minpairs/internal/replay"
)

// session owns everything a command needs to talk to the API: a fresh
// key rotator, the caller and a ledger run.
type session struct {
	caller *llm.Caller
	ledger *ledger.Store
	run    ledger.Run
}

func openSession(command string) (*session, error) {
	keys, err := credentials.FromEnv(cfg.KeyEnv)
	if err != nil {
		return nil, err
	}
	rotator, err := credentials.New(keys)
	if err != nil {
		return nil, err
	}

	var transport llm.Transport = llm.NewOpenAITransport(cfg.BaseURL, nil)
	if cfg.ReplayFixture != "" {
		f, err := replay.LoadFixture(cfg.ReplayFixture)
		if err != nil {
			return nil, err
		}
		transport = replay.NewTransport(f)
		logger.Warn("serving responses from fixture", zap.String("fixture", cfg.ReplayFixture))
	}

	lg, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	callCfg := cfg.LLM()
	run, err := lg.BeginRun(command, callCfg.Decoding.Fingerprint())
	if err != nil {
		lg.Close()
		return nil, err
	}

	recorder := ledger.NewRecorder(lg, run, callCfg.Decoding, logger)
	caller := llm.NewCaller(transport, rotator, callCfg, logger, llm.WithObserver(recorder))

	logger.Info("run started",
		zap.String("run_id", run.RunID),
		zap.String("command", command),
		zap.Int("keys", rotator.Len()),
		zap.String("decoding", run.Fingerprint))
	return &session{caller: caller, ledger: lg, run: run}, nil
}

// close records the outcome of the run and releases the ledger.
func (s *session) close(runErr error, summary string) {
	status := ledger.StatusOK
	if runErr != nil {
		status = ledger.StatusFailed
		if summary == "" {
			summary = runErr.Error()
		} else {
			summary += "; " + runErr.Error()
		}
	}
	if err := s.ledger.FinishRun(s.run.RunID, status, summary); err != nil {
		logger.Warn("finish run", zap.Error(err))
	}
	if err := s.ledger.Close(); err != nil {
		logger.Warn("close ledger", zap.Error(err))
	}
	if errors.Is(runErr, credentials.ErrCredentialsExhausted) {
		logger.Error("all API keys are rate limited; add keys or wait, then rerun to resume")
	}
}
