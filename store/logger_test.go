package store

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(Options{Logger: zap.New(core)})
	s.Subscribe(NewLogObserver(zap.New(core)))

	bar := s.Allocate("Bar", nil)
	foo := s.Allocate("Foo", nil)
	if err := s.Assign(bar, "foo", foo); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearStrong(bar); err != nil {
		t.Fatal(err)
	}

	finalized := logs.FilterMessage("object finalized").All()
	if len(finalized) != 2 {
		t.Fatalf("finalized entries = %d, want 2", len(finalized))
	}
	if finalized[0].Level != zapcore.InfoLevel {
		t.Fatalf("level = %v, want info", finalized[0].Level)
	}
	if got := finalized[0].ContextMap()["label"]; got != "Bar" {
		t.Fatalf("first finalized label = %v, want Bar", got)
	}
	if got := finalized[1].ContextMap()["cascade"]; got != nil {
		t.Fatalf("finalized events carry no cascade flag, got %v", got)
	}

	cascaded := logs.FilterField(zap.Bool("cascade", true)).All()
	if len(cascaded) != 1 || cascaded[0].ContextMap()["label"] != "Foo" {
		t.Fatalf("cascade entries = %v", cascaded)
	}

	if logs.FilterMessage("finalize").Len() != 2 {
		t.Fatalf("store debug entries = %d, want 2", logs.FilterMessage("finalize").Len())
	}
}

func TestStore_MisuseLoggedAtWarn(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(Options{Logger: zap.New(core)})

	h := s.Allocate("Foo", nil)
	w, err := s.MakeWeak(h)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ClearStrong(h); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CopyStrong(h); err == nil {
		t.Fatal("expected UseAfterFree")
	}
	if err := s.ClearWeak(w); err != nil {
		t.Fatal(err)
	}

	if logs.FilterMessage("copy of finalized object").Len() != 1 {
		t.Fatalf("warn entries: %v", logs.All())
	}
}

func TestLogger_DefaultNop(t *testing.T) {
	if Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
}
