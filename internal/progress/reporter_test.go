package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Description: "Evaluating", Out: &buf}

	r.Start(2)
	r.Update(1, "baseline: first")
	r.Update(2, "baseline: second")
	r.Finish()

	assert.Equal(t, "Evaluating: 2 step(s)\n[1/2] baseline: first\n[2/2] baseline: second\nEvaluating: done\n", buf.String())
}

func TestNewReporterInCI(t *testing.T) {
	t.Setenv("CI", "true")
	r, ok := NewReporter("Evaluating").(*CIReporter)
	if assert.True(t, ok) {
		assert.Equal(t, "Evaluating", r.Description)
	}
}

func TestNewReporterInTerminal(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	_, ok := NewReporter("Evaluating").(*TerminalReporter)
	assert.True(t, ok)
}

func TestTerminalReporterWithoutStart(t *testing.T) {
	r := &TerminalReporter{}
	assert.NotPanics(t, func() {
		r.Update(1, "x")
		r.Finish()
	})
}
