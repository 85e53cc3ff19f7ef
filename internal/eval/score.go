package eval

import (
	"github.com/ziadkadry99/docqa/internal/embeddings"
)

// Retrieved is one source returned for a case.
type Retrieved struct {
	Source  string
	Content string
}

// Scores are the retrieval metrics for one case, each in [0, 1].
type Scores struct {
	Precision        float64
	Recall           float64
	ContextPrecision float64
	ContextRecall    float64
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "as": true, "at": true, "by": true,
	"does": true, "for": true, "from": true, "how": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"uses": true, "what": true, "with": true,
}

// Terms returns the distinct content words of text.
func Terms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range embeddings.Tokenize(text) {
		if !stopwords[tok] {
			terms[tok] = true
		}
	}
	return terms
}

// coverage is the fraction of want found in have.
func coverage(want, have map[string]bool) float64 {
	if len(want) == 0 {
		return 0
	}
	n := 0
	for t := range want {
		if have[t] {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

// Score computes the retrieval metrics for the retrieved records of c.
// Context precision is rank-aware: the mean of precision@r over every rank r
// holding a relevant record.
func Score(c Case, retrieved []Retrieved) Scores {
	truth := Terms(c.GroundTruth)

	all := make(map[string]bool)
	relevant := 0
	var atRank float64
	found := make(map[string]bool)
	for i, r := range retrieved {
		terms := Terms(r.Content)
		for t := range terms {
			all[t] = true
		}
		if isRelevant(c, r, truth, terms) {
			relevant++
			atRank += float64(relevant) / float64(i+1)
			found[r.Source] = true
		}
	}

	var s Scores
	if len(retrieved) > 0 {
		s.Precision = float64(relevant) / float64(len(retrieved))
	}
	switch {
	case len(c.RelevantSources) > 0:
		s.Recall = float64(len(found)) / float64(len(uniq(c.RelevantSources)))
	case relevant > 0:
		s.Recall = 1
	}
	if relevant > 0 {
		s.ContextPrecision = atRank / float64(relevant)
	}
	s.ContextRecall = coverage(truth, all)
	return s
}

func isRelevant(c Case, r Retrieved, truth, terms map[string]bool) bool {
	if len(c.RelevantSources) > 0 {
		for _, src := range c.RelevantSources {
			if src == r.Source {
				return true
			}
		}
		return false
	}
	return len(truth) > 0 && coverage(truth, terms) >= 0.5
}

func uniq(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
