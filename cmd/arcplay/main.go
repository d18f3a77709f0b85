package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/arcstore/scenario"
	"github.com/wippyai/arcstore/store"
)

func main() {
	var (
		name        = flag.String("scenario", "", "Built-in scenario to run")
		file        = flag.String("file", "", "Path to a scenario YAML file")
		all         = flag.Bool("all", false, "Run every built-in scenario")
		list        = flag.Bool("list", false, "List built-in scenarios and exit")
		verbose     = flag.Bool("v", false, "Log store events to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync() //nolint:errcheck
	store.SetLogger(logger)

	if *list {
		if err := listScenarios(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *name == "" && *file == "" && !*all {
		fmt.Fprintln(os.Stderr, "Usage: arcplay -scenario <name> [-v]")
		fmt.Fprintln(os.Stderr, "       arcplay -file <scenario.yaml> [-v]")
		fmt.Fprintln(os.Stderr, "       arcplay -all")
		fmt.Fprintln(os.Stderr, "       arcplay -list")
		fmt.Fprintln(os.Stderr, "       arcplay -scenario <name> -i  (interactive mode)")
		os.Exit(1)
	}

	if *all {
		if err := runAll(os.Stdout, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	sc, err := loadScenario(*name, *file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "stdout is not a terminal, running non-interactively")
		} else {
			if err := runInteractive(sc, logger); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(os.Stdout, sc, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadScenario(name, file string) (*scenario.Scenario, error) {
	if file != "" {
		return scenario.Load(file)
	}
	return scenario.Lookup(name)
}

func listScenarios(w io.Writer) error {
	all, err := scenario.Builtin()
	if err != nil {
		return err
	}
	for _, sc := range all {
		fmt.Fprintf(w, "  %-24s %s\n", sc.Name, strings.TrimSpace(sc.Description))
	}
	return nil
}

func run(w io.Writer, sc *scenario.Scenario, logger *zap.Logger) error {
	fmt.Fprintf(w, "Scenario: %s\n", sc.Name)
	if sc.Description != "" {
		fmt.Fprintf(w, "%s\n", strings.TrimSpace(sc.Description))
	}
	fmt.Fprintln(w)

	res, err := scenario.NewRunner(w, logger).Run(sc)
	printSummary(w, res)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return nil
}

func runAll(w io.Writer, logger *zap.Logger) error {
	all, err := scenario.Builtin()
	if err != nil {
		return err
	}
	failed := 0
	for _, sc := range all {
		if err := run(w, sc, logger); err != nil {
			fmt.Fprintf(w, "FAIL: %v\n", err)
			failed++
		}
		fmt.Fprintln(w)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(all))
	}
	return nil
}

func printSummary(w io.Writer, res *scenario.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "\n--- %s ---\n", res.Name)
	fmt.Fprintf(w, "Steps:     %d\n", res.Steps)
	fmt.Fprintf(w, "Finalized: %s\n", listOrNone(res.Finalized))
	fmt.Fprintf(w, "Leaked:    %s\n", listOrNone(res.Leaked))
	fmt.Fprintf(w, "Records:   %d live, %d awaiting purge, %d purged\n",
		res.Stats.Live, res.Stats.Zombies, res.Stats.Purged)
}

func listOrNone(s []string) string {
	if len(s) == 0 {
		return "none"
	}
	return strings.Join(s, ", ")
}
