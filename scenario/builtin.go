package scenario

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"sync"

	arcerrors "github.com/wippyai/arcstore/errors"
)

//go:embed scenarios/*.yaml
var builtinFS embed.FS

var (
	builtins     []*Scenario
	builtinsErr  error
	builtinsOnce sync.Once
)

// Builtin returns the embedded scenarios sorted by name.
func Builtin() ([]*Scenario, error) {
	builtinsOnce.Do(func() {
		builtins, builtinsErr = loadBuiltins()
	})
	return builtins, builtinsErr
}

func loadBuiltins() ([]*Scenario, error) {
	entries, err := builtinFS.ReadDir("scenarios")
	if err != nil {
		return nil, fmt.Errorf("read embedded scenarios: %w", err)
	}

	var out []*Scenario
	for _, e := range entries {
		data, err := builtinFS.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		sc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Lookup returns the embedded scenario with the given name.
func Lookup(name string) (*Scenario, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	for _, sc := range all {
		if sc.Name == name {
			return sc, nil
		}
	}
	return nil, arcerrors.NotFound(arcerrors.PhaseScenario, "scenario", name)
}
