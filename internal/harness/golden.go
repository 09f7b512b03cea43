package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the golden form of a run.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to the types MarshalCanonical accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":  event.Seq,
			"op":   event.Op,
			"case": event.Case,
		}
		if event.Args != nil {
			m["args"] = event.Args
		}
		if event.Result != nil {
			m["result"] = event.Result
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario": s.Scenario,
		"trace":    trace,
	}
}

// RunWithGolden runs scenario in a temporary directory, fails the test if the
// run does not pass, and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, t.TempDir())
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:", scenario.Name)
		for _, msg := range result.Errors {
			t.Error(msg)
		}
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares result's trace against the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{Scenario: name, Trace: result.Trace}
	data, err := MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
