package scenario

import (
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/arcstore/store"
)

// Result summarizes one scenario run.
type Result struct {
	Name      string
	Finalized []string
	Leaked    []string
	Stats     store.Stats
	Steps     int
}

// Runner executes scenarios to completion.
type Runner struct {
	out    io.Writer
	logger *zap.Logger
}

// NewRunner creates a runner writing finalizer output to out.
func NewRunner(out io.Writer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{out: out, logger: logger}
}

// Run executes every step of sc and checks its expectations. A failing step
// stops the run; expectation mismatches are all reported together.
func (r *Runner) Run(sc *Scenario) (*Result, error) {
	sess := NewSession(sc, r.out, r.logger)
	for {
		more, err := sess.Step()
		if err != nil {
			return r.result(sess), err
		}
		if !more {
			break
		}
	}

	res := r.result(sess)
	if err := sess.Check(); err != nil {
		r.logger.Warn("scenario expectations failed",
			zap.String("scenario", sc.Name),
			zap.Int("mismatches", len(multierr.Errors(err))))
		return res, err
	}
	r.logger.Info("scenario passed",
		zap.String("scenario", sc.Name),
		zap.Strings("finalized", res.Finalized),
		zap.Strings("leaked", res.Leaked))
	return res, nil
}

// RunAll executes every scenario, collecting all failures.
func (r *Runner) RunAll(scs []*Scenario) ([]*Result, error) {
	var (
		results []*Result
		errs    error
	)
	for _, sc := range scs {
		res, err := r.Run(sc)
		results = append(results, res)
		errs = multierr.Append(errs, err)
	}
	return results, errs
}

func (r *Runner) result(sess *Session) *Result {
	return &Result{
		Name:      sess.Scenario().Name,
		Finalized: sess.Finalized(),
		Leaked:    sess.Leaked(),
		Stats:     sess.Store().Stats(),
		Steps:     sess.Position(),
	}
}
