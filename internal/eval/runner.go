package eval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/docqa/internal/progress"
	"github.com/ziadkadry99/docqa/internal/retrieval"
	"github.com/ziadkadry99/docqa/internal/server"
)

// Answerer answers one question. *server.Server satisfies it.
type Answerer interface {
	Query(ctx context.Context, req server.QueryRequest) (*server.QueryResponse, error)
}

// CaseResult is the outcome of one case under one mode.
type CaseResult struct {
	Case
	Answer  string
	Sources []string
	Scores
	Err error
}

// Summary is every case result for one mode plus the mean scores over the
// cases that did not fail.
type Summary struct {
	Mode    retrieval.Mode
	K       int
	Results []CaseResult
	Mean    Scores
	Failed  int
}

// Runner evaluates cases against an Answerer.
type Runner struct {
	Answerer Answerer
	K        int
	Progress progress.Reporter
	Logger   zerolog.Logger
}

// Run evaluates every case under each mode. A failing case is recorded in
// its Summary and does not stop the run; only context cancellation does.
func (r *Runner) Run(ctx context.Context, modes []retrieval.Mode, cases []Case) ([]Summary, error) {
	if r.K < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", r.K)
	}
	rep := r.Progress
	if rep == nil {
		rep = progress.Nop{}
	}

	rep.Start(len(modes) * len(cases))
	defer rep.Finish()

	summaries := make([]Summary, 0, len(modes))
	step := 0
	for _, mode := range modes {
		sum := Summary{Mode: mode, K: r.K}
		for _, c := range cases {
			if err := ctx.Err(); err != nil {
				return summaries, err
			}
			step++
			rep.Update(step, fmt.Sprintf("%s: %s", mode, c.Question))

			res := r.runCase(ctx, mode, c)
			if res.Err != nil {
				sum.Failed++
				r.Logger.Warn().Err(res.Err).Str("mode", string(mode)).Str("question", c.Question).Msg("eval case failed")
			}
			sum.Results = append(sum.Results, res)
		}
		sum.Mean = mean(sum.Results)
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

func (r *Runner) runCase(ctx context.Context, mode retrieval.Mode, c Case) CaseResult {
	k := r.K
	resp, err := r.Answerer.Query(ctx, server.QueryRequest{
		Question: c.Question,
		K:        &k,
		Mode:     string(mode),
	})
	if err != nil {
		return CaseResult{Case: c, Err: err}
	}

	res := CaseResult{Case: c, Answer: resp.Answer}
	retrieved := make([]Retrieved, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		res.Sources = append(res.Sources, s.Source)
		retrieved = append(retrieved, Retrieved{Source: s.Source, Content: s.Content})
	}
	res.Scores = Score(c, retrieved)
	return res
}

func mean(results []CaseResult) Scores {
	var m Scores
	n := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		m.Precision += r.Precision
		m.Recall += r.Recall
		m.ContextPrecision += r.ContextPrecision
		m.ContextRecall += r.ContextRecall
		n++
	}
	if n == 0 {
		return Scores{}
	}
	m.Precision /= float64(n)
	m.Recall /= float64(n)
	m.ContextPrecision /= float64(n)
	m.ContextRecall /= float64(n)
	return m
}
