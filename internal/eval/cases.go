// Package eval scores retrieval quality for each query-embedding strategy.
package eval

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one evaluation question.
type Case struct {
	Question    string `yaml:"question"`
	GroundTruth string `yaml:"ground_truth"`
	// RelevantSources lists the document sources that answer the question.
	// When empty, relevance is judged by ground-truth term overlap.
	RelevantSources []string `yaml:"relevant_sources,omitempty"`
}

// DefaultCases returns the built-in questions about the demo corpus.
func DefaultCases() []Case {
	return []Case{
		{
			Question:    "What stack does the demo use?",
			GroundTruth: "It uses Weaviate for vectors and GPT4All as the local LLM.",
		},
		{
			Question:    "How does the system process a query?",
			GroundTruth: "It embeds query text, retrieves similar chunks, and drafts an answer with the LLM.",
		},
	}
}

type caseFile struct {
	Cases []Case `yaml:"cases"`
}

// LoadCases reads cases from a YAML file with a top-level "cases" list.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}

	var f caseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing cases %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, errors.New("cases file contains no cases")
	}
	for i, c := range f.Cases {
		if strings.TrimSpace(c.Question) == "" {
			return nil, fmt.Errorf("case %d: question is required", i+1)
		}
		if strings.TrimSpace(c.GroundTruth) == "" && len(c.RelevantSources) == 0 {
			return nil, fmt.Errorf("case %d: ground_truth or relevant_sources is required", i+1)
		}
	}
	return f.Cases, nil
}
