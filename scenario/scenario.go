package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	arcerrors "github.com/wippyai/arcstore/errors"
)

// Op names a scenario step.
type Op string

const (
	OpAllocate   Op = "allocate"    // bind = new object labelled label, quiet skips the deinit line
	OpCopy       Op = "copy"        // bind = copy of strong binding from
	OpClear      Op = "clear"       // from = nil (strong)
	OpWeak       Op = "weak"        // bind = weak handle to from
	OpClearWeak  Op = "clear-weak"  // from = nil (weak)
	OpResolve    Op = "resolve"     // bind = upgrade of weak binding from
	OpAssign     Op = "assign"      // owner.slot = from (strong, retains)
	OpAssignWeak Op = "assign-weak" // owner.slot = from (weak)
	OpUnassign   Op = "unassign"    // owner.slot = nil
	OpPrint      Op = "print"       // write note to the output
)

// Expected error kinds a step may declare.
const (
	ExpectEmpty = "empty" // resolve found no live object
)

// Scenario is a scripted sequence of store operations with the outcome it
// should produce.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps"`
	Expect      Expect `yaml:"expect,omitempty"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op     Op     `yaml:"op"`
	Bind   string `yaml:"bind,omitempty"`
	Label  string `yaml:"label,omitempty"`
	From   string `yaml:"from,omitempty"`
	Owner  string `yaml:"owner,omitempty"`
	Slot   string `yaml:"slot,omitempty"`
	Note   string `yaml:"note,omitempty"`
	Expect string `yaml:"expect,omitempty"`
	Quiet  bool   `yaml:"quiet,omitempty"`
}

// Expect declares the state after the last step. Nil fields are not checked.
type Expect struct {
	Finalized []string `yaml:"finalized,omitempty"`
	Leaked    []string `yaml:"leaked,omitempty"`
	Live      *int     `yaml:"live,omitempty"`
	Present   *int     `yaml:"present,omitempty"`
}

// String renders the step the way the TUI and logs show it.
func (s Step) String() string {
	switch s.Op {
	case OpAllocate:
		return fmt.Sprintf("%s = %s()", s.Bind, s.Label)
	case OpCopy, OpWeak:
		return fmt.Sprintf("%s = %s(%s)", s.Bind, s.Op, s.From)
	case OpResolve:
		return fmt.Sprintf("%s = %s?", s.Bind, s.From)
	case OpClear, OpClearWeak:
		return fmt.Sprintf("%s = nil", s.From)
	case OpAssign:
		return fmt.Sprintf("%s.%s = %s", s.Owner, s.Slot, s.From)
	case OpAssignWeak:
		return fmt.Sprintf("%s.%s = weak(%s)", s.Owner, s.Slot, s.From)
	case OpUnassign:
		return fmt.Sprintf("%s.%s = nil", s.Owner, s.Slot)
	case OpPrint:
		return fmt.Sprintf("print(%q)", s.Note)
	default:
		return string(s.Op)
	}
}

// Parse decodes and validates a YAML scenario document.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, arcerrors.ParseFailed("scenario", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks that every step carries the fields its op needs.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return arcerrors.InvalidData(arcerrors.PhaseParse, nil, "scenario name is required")
	}
	for i, st := range sc.Steps {
		path := []string{sc.Name, "steps", strconv.Itoa(i)}
		var missing string
		switch st.Op {
		case OpAllocate:
			missing = firstEmpty("bind", st.Bind, "label", st.Label)
		case OpCopy, OpWeak, OpResolve:
			missing = firstEmpty("bind", st.Bind, "from", st.From)
		case OpClear, OpClearWeak:
			missing = firstEmpty("from", st.From)
		case OpAssign, OpAssignWeak:
			missing = firstEmpty("owner", st.Owner, "slot", st.Slot, "from", st.From)
		case OpUnassign:
			missing = firstEmpty("owner", st.Owner, "slot", st.Slot)
		case OpPrint:
			missing = firstEmpty("note", st.Note)
		default:
			return arcerrors.InvalidData(arcerrors.PhaseParse, path, fmt.Sprintf("unknown op %q", st.Op))
		}
		if missing != "" {
			return arcerrors.InvalidData(arcerrors.PhaseParse, path, fmt.Sprintf("%s requires %q", st.Op, missing))
		}
		switch st.Expect {
		case "", ExpectEmpty, string(arcerrors.KindUseAfterFree), string(arcerrors.KindUnknownHandle):
		default:
			return arcerrors.InvalidData(arcerrors.PhaseParse, path, fmt.Sprintf("unknown expectation %q", st.Expect))
		}
		if st.Quiet && st.Op != OpAllocate {
			return arcerrors.InvalidData(arcerrors.PhaseParse, path, "only allocate can be quiet")
		}
		if st.Expect == ExpectEmpty && st.Op != OpResolve {
			return arcerrors.InvalidData(arcerrors.PhaseParse, path, "only resolve can expect empty")
		}
	}
	return nil
}

// firstEmpty takes name/value pairs and returns the first name whose value
// is empty.
func firstEmpty(pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return pairs[i]
		}
	}
	return ""
}
