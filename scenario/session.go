package scenario

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	arcerrors "github.com/wippyai/arcstore/errors"
	"github.com/wippyai/arcstore/store"
)

// Binding is a named variable of the script holding one handle.
type Binding struct {
	Name   string
	Strong store.Strong
	Weak   store.Weak
	IsWeak bool
}

// ID returns the identifier the binding refers to.
func (b Binding) ID() store.ID {
	if b.IsWeak {
		return b.Weak.ID()
	}
	return b.Strong.ID()
}

// Session executes a scenario one step at a time against a fresh store.
type Session struct {
	sc        *Scenario
	st        *store.Store
	out       io.Writer
	logger    *zap.Logger
	bindings  map[string]Binding
	finalized []string
	next      int
}

// NewSession prepares sc for execution. Finalizer output ("<Label> deinit")
// goes to out, except for objects allocated quietly.
func NewSession(sc *Scenario, out io.Writer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	l := logger.With(zap.String("scenario", sc.Name))
	s := &Session{
		sc:       sc,
		st:       store.New(store.Options{Logger: l, InitialCapacity: len(sc.Steps)}),
		out:      out,
		logger:   l,
		bindings: make(map[string]Binding),
	}
	s.st.Subscribe(store.NewLogObserver(l))
	return s
}

// Scenario returns the script being executed.
func (s *Session) Scenario() *Scenario { return s.sc }

// Store exposes the underlying store for inspection.
func (s *Session) Store() *store.Store { return s.st }

// Finalized returns labels in finalization order.
func (s *Session) Finalized() []string { return slices.Clone(s.finalized) }

// Position returns the index of the next step to run.
func (s *Session) Position() int { return s.next }

// Done reports whether every step has run.
func (s *Session) Done() bool { return s.next >= len(s.sc.Steps) }

// Bindings returns the current variables sorted by name.
func (s *Session) Bindings() []Binding {
	out := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Step runs the next step. It returns false once the scenario is exhausted.
func (s *Session) Step() (bool, error) {
	if s.Done() {
		return false, nil
	}
	idx := s.next
	st := s.sc.Steps[idx]
	s.next++

	s.logger.Debug("step", zap.Int("index", idx), zap.Stringer("step", st))

	err := s.exec(st)
	if err = s.checkStepError(st, err); err != nil {
		return true, arcerrors.New(arcerrors.PhaseScenario, kindOf(err)).
			Path(s.sc.Name, "steps", strconv.Itoa(idx)).
			Value(st.String()).
			Cause(err).
			Build()
	}
	return true, nil
}

func kindOf(err error) arcerrors.Kind {
	var e *arcerrors.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return arcerrors.KindInvalidInput
}

// checkStepError compares the step outcome with the step's declared
// expectation.
func (s *Session) checkStepError(st Step, err error) error {
	switch st.Expect {
	case "", ExpectEmpty:
		return err
	}
	want := &arcerrors.Error{Kind: arcerrors.Kind(st.Expect)}
	if err == nil {
		return arcerrors.Expectation(nil, st.Expect, "success")
	}
	if !errors.Is(err, want) {
		return err
	}
	s.logger.Info("expected failure", zap.String("kind", st.Expect), zap.Error(err))
	fmt.Fprintf(s.out, "error: %v\n", err)
	return nil
}

func (s *Session) exec(st Step) error {
	switch st.Op {
	case OpAllocate:
		label, quiet := st.Label, st.Quiet
		h := s.st.Allocate(label, func(store.ID) {
			s.finalized = append(s.finalized, label)
			if !quiet {
				fmt.Fprintf(s.out, "%s deinit\n", label)
			}
		})
		return s.bindStrong(st.Bind, h)

	case OpCopy:
		src, err := s.strong(st.From)
		if err != nil {
			return err
		}
		h, err := s.st.CopyStrong(src.Strong)
		if err != nil {
			return err
		}
		return s.bindStrong(st.Bind, h)

	case OpClear:
		b, err := s.strong(st.From)
		if err != nil {
			return err
		}
		if err := s.st.ClearStrong(b.Strong); err != nil {
			return err
		}
		delete(s.bindings, st.From)
		return nil

	case OpWeak:
		src, err := s.lookup(st.From)
		if err != nil {
			return err
		}
		w, err := s.st.MakeWeak(src)
		if err != nil {
			return err
		}
		return s.bindWeak(st.Bind, w)

	case OpClearWeak:
		b, err := s.weak(st.From)
		if err != nil {
			return err
		}
		if err := s.st.ClearWeak(b.Weak); err != nil {
			return err
		}
		delete(s.bindings, st.From)
		return nil

	case OpResolve:
		src, err := s.weak(st.From)
		if err != nil {
			return err
		}
		h, ok, err := s.st.Resolve(src.Weak)
		if err != nil {
			return err
		}
		if !ok {
			if st.Expect != ExpectEmpty {
				fmt.Fprintf(s.out, "%s is nil\n", st.From)
			}
			return s.unbind(st.Bind)
		}
		if st.Expect == ExpectEmpty {
			if err := s.st.ClearStrong(h); err != nil {
				return err
			}
			return arcerrors.Expectation(nil, ExpectEmpty, "live object")
		}
		return s.bindStrong(st.Bind, h)

	case OpAssign:
		src, err := s.lookup(st.From)
		if err != nil {
			return err
		}
		owner, err := s.lookup(st.Owner)
		if err != nil {
			return err
		}
		var h store.Strong
		if src.IsWeak {
			var ok bool
			h, ok, err = s.st.Resolve(src.Weak)
			if err == nil && !ok {
				return s.st.Unassign(owner, st.Slot)
			}
		} else {
			h, err = s.st.CopyStrong(src.Strong)
		}
		if err != nil {
			return err
		}
		if err := s.st.Assign(owner, st.Slot, h); err != nil {
			return multierr.Append(err, s.st.ClearStrong(h))
		}
		return nil

	case OpAssignWeak:
		src, err := s.lookup(st.From)
		if err != nil {
			return err
		}
		owner, err := s.lookup(st.Owner)
		if err != nil {
			return err
		}
		w, err := s.st.MakeWeak(src)
		if err != nil {
			return err
		}
		if err := s.st.AssignWeak(owner, st.Slot, w); err != nil {
			return multierr.Append(err, s.st.ClearWeak(w))
		}
		return nil

	case OpUnassign:
		owner, err := s.lookup(st.Owner)
		if err != nil {
			return err
		}
		return s.st.Unassign(owner, st.Slot)

	case OpPrint:
		fmt.Fprintln(s.out, st.Note)
		return nil
	}
	return arcerrors.InvalidInput(arcerrors.PhaseScenario, fmt.Sprintf("unknown op %q", st.Op))
}

func (s *Session) lookup(name string) (Binding, error) {
	b, ok := s.bindings[name]
	if !ok {
		return Binding{}, arcerrors.NotFound(arcerrors.PhaseScenario, "binding", name)
	}
	return b, nil
}

func (s *Session) strong(name string) (Binding, error) {
	b, err := s.lookup(name)
	if err != nil {
		return Binding{}, err
	}
	if b.IsWeak {
		return Binding{}, arcerrors.InvalidInput(arcerrors.PhaseScenario, fmt.Sprintf("binding %q is weak", name))
	}
	return b, nil
}

func (s *Session) weak(name string) (Binding, error) {
	b, err := s.lookup(name)
	if err != nil {
		return Binding{}, err
	}
	if !b.IsWeak {
		return Binding{}, arcerrors.InvalidInput(arcerrors.PhaseScenario, fmt.Sprintf("binding %q is strong", name))
	}
	return b, nil
}

// unbind releases whatever name currently holds, as overwriting a variable
// does.
func (s *Session) unbind(name string) error {
	prev, ok := s.bindings[name]
	if !ok {
		return nil
	}
	delete(s.bindings, name)
	if prev.IsWeak {
		return s.st.ClearWeak(prev.Weak)
	}
	return s.st.ClearStrong(prev.Strong)
}

func (s *Session) bindStrong(name string, h store.Strong) error {
	if err := s.unbind(name); err != nil {
		return err
	}
	s.bindings[name] = Binding{Name: name, Strong: h}
	return nil
}

func (s *Session) bindWeak(name string, w store.Weak) error {
	if err := s.unbind(name); err != nil {
		return err
	}
	s.bindings[name] = Binding{Name: name, Weak: w, IsWeak: true}
	return nil
}

// Check compares the current state with the scenario's expectations and
// reports every mismatch.
func (s *Session) Check() error {
	exp := s.sc.Expect
	var err error

	if exp.Finalized != nil && !slices.Equal(exp.Finalized, s.finalized) {
		err = multierr.Append(err, arcerrors.Expectation(
			[]string{s.sc.Name, "expect", "finalized"}, exp.Finalized, s.finalized))
	}

	if exp.Leaked != nil {
		got := s.Leaked()
		want := slices.Clone(exp.Leaked)
		sort.Strings(want)
		if !slices.Equal(want, got) {
			err = multierr.Append(err, arcerrors.Expectation(
				[]string{s.sc.Name, "expect", "leaked"}, want, got))
		}
	}

	stats := s.st.Stats()
	if exp.Live != nil && *exp.Live != stats.Live {
		err = multierr.Append(err, arcerrors.Expectation(
			[]string{s.sc.Name, "expect", "live"}, *exp.Live, stats.Live))
	}
	if exp.Present != nil && *exp.Present != s.st.Len() {
		err = multierr.Append(err, arcerrors.Expectation(
			[]string{s.sc.Name, "expect", "present"}, *exp.Present, s.st.Len()))
	}
	return err
}

// Leaked returns the sorted labels of objects no binding can reach.
func (s *Session) Leaked() []string {
	var out []string
	for _, info := range s.st.Leaks() {
		out = append(out, info.Label)
	}
	sort.Strings(out)
	return out
}
