package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wasmdiff/wasmdiff/harness"
	"github.com/wasmdiff/wasmdiff/wasm"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#90EE90"))

	mismatchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to core wasm module")
		funcName    = flag.String("func", "main", "Exported function to run on both paths")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("i", false, "Interactive interpreter stepper TUI")
		verbose     = flag.Bool("v", false, "Verbose debug logging")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wasmdiff -wasm <file.wasm> [-func name]")
		fmt.Fprintln(os.Stderr, "       wasmdiff -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       wasmdiff -wasm <file.wasm> -i  (interactive stepper)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	match, err := run(*wasmFile, *funcName, *list, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !match {
		os.Exit(2)
	}
}

func run(wasmFile, funcName string, listOnly, verbose bool) (bool, error) {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return false, fmt.Errorf("read file: %w", err)
	}

	mod, err := wasm.ParseModuleValidate(data)
	if err != nil {
		return false, fmt.Errorf("load module: %w", err)
	}

	fmt.Println(titleStyle.Render("wasmdiff") + " " + wasmFile)
	fmt.Printf("Functions: %d  Exports: %d\n", mod.NumFuncs(), len(mod.Exports))
	fmt.Printf("\nExported functions:\n")
	for _, exp := range mod.Exports {
		if exp.Kind != wasm.KindFunc {
			continue
		}
		sig := mod.GetFuncType(exp.Idx)
		fmt.Printf("  %s%s\n", funcStyle.Render(exp.Name), typeStyle.Render(formatSig(sig)))
	}

	if listOnly {
		return true, nil
	}

	cfg := &harness.Config{}
	if verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return false, err
		}
		defer log.Sync()
		cfg.Logger = log
	}
	h, err := harness.NewWithConfig(ctx, cfg)
	if err != nil {
		return false, fmt.Errorf("create harness: %w", err)
	}
	defer h.Close(ctx)

	cmp, err := h.RunBoth(ctx, data, funcName)
	if err != nil {
		return false, fmt.Errorf("run %s: %w", funcName, err)
	}

	fmt.Printf("\nDifferential run of %s:\n", funcStyle.Render(funcName))
	fmt.Printf("  compiled:    %s\n", cmp.Compiled)
	fmt.Printf("  interpreted: %s\n", cmp.Interpreted)
	fmt.Println()
	if cmp.Match() {
		fmt.Println(matchStyle.Render("MATCH"))
	} else if cmp.Nondeterministic() {
		fmt.Println(noteStyle.Render("DIVERGED (nondeterministic, expected)"))
	} else {
		fmt.Println(mismatchStyle.Render("MISMATCH"))
	}
	return cmp.Match() || cmp.Nondeterministic(), nil
}

func formatSig(sig *wasm.FuncType) string {
	if sig == nil {
		return "(?)"
	}
	params := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = p.String()
	}
	s := "(" + strings.Join(params, ", ") + ")"
	if len(sig.Results) > 0 {
		results := make([]string, len(sig.Results))
		for i, r := range sig.Results {
			results[i] = r.String()
		}
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}
