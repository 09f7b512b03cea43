package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted editing session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup steps run before the flow. Their expect clauses are ignored;
	// any failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps run in order; each may check its outcome.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and the committed state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one service operation.
type Step struct {
	Op    string `yaml:"op"`
	DB    string `yaml:"db,omitempty"`
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`
	Query string `yaml:"query,omitempty"`

	// Expect checks the outcome. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Case is "ok" (the default) or an error code such as NOT_FOUND.
	Case string `yaml:"case,omitempty"`

	// Result is a subset match against the event result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the committed state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op names the operation (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args is a subset match against event args (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of events (trace_count).
	Count int `yaml:"count,omitempty"`

	// DB and Key address a committed entry (final_state).
	DB  string `yaml:"db,omitempty"`
	Key string `yaml:"key,omitempty"`

	// Value is the expected committed value, or Absent is true (final_state).
	Value  *string `yaml:"value,omitempty"`
	Absent bool    `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Operation names.
const (
	OpPut    = "put"
	OpDelete = "delete"
	OpGet    = "get"
	OpUndo   = "undo"
	OpRedo   = "redo"
	OpCommit = "commit"
	OpAbort  = "abort"
	OpList   = "list"
	OpQuery  = "query"
	OpStats  = "stats"
)

// CaseOK is the case of a step that succeeded.
const CaseOK = "ok"

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields each op needs.
func validateStep(step Step) error {
	switch step.Op {
	case OpPut, OpDelete, OpGet:
		if step.DB == "" || step.Key == "" {
			return fmt.Errorf("%s needs db and key", step.Op)
		}
	case OpQuery:
		if step.DB == "" || step.Query == "" {
			return fmt.Errorf("query needs db and query")
		}
	case OpStats:
		if step.DB == "" {
			return fmt.Errorf("stats needs db")
		}
	case OpUndo, OpRedo, OpCommit, OpAbort, OpList:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.DB == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: db and key are required for final_state", index)
		}
		if (a.Value == nil) == !a.Absent {
			return fmt.Errorf("assertions[%d]: final_state needs exactly one of value or absent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
