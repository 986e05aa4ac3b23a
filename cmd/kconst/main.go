package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	consteval "github.com/kitelang/consteval"
)

const (
	appName     = "kconst"
	historyFile = ".kconst_history"
	promptMain  = "==> "
)

var banner = fmt.Sprintf("kconst %s constant evaluator REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.", consteval.Version)

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "eval":
		os.Exit(cmdEval(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl(os.Args[2:]))
	case "version":
		fmt.Println(consteval.Version)
		return
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Printf(`kconst %s (built %s)

Usage:
  %s eval [options] <expr|file>     Evaluate one constant expression.
  %s repl [options]                 Start the REPL.
  %s version                        Print the compiled version.

Options:
  -c <file.toml>     Load defines and features from a TOML config file.
  -D <name>=<value>  Declare a build-environment variable (repeatable).
  --report-unselected-branch
                     Report diagnostics from unselected conditional branches.

Expressions use the s-expression notation, e.g.:
  %s eval '(+ 1 (* 2 3))'
  %s eval -D app.flavor=beta '(env-string "app.flavor")'

`, consteval.Version, consteval.BuildDate, appName, appName, appName, appName, appName)
}

// cliOptions is the shared eval/repl option set: a config file, overlaid by
// -D definitions, plus feature switches.
type cliOptions struct {
	defines  map[string]string
	features consteval.Features
	rest     []string
}

func parseOptions(args []string) (*cliOptions, error) {
	opts := &cliOptions{defines: map[string]string{}}
	i := 0
	for i < len(args) {
		a := args[i]
		switch {
		case a == "-c":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-c requires a file path")
			}
			i++
			cfg, err := consteval.LoadConfig(args[i])
			if err != nil {
				return nil, err
			}
			for k, v := range cfg.Defines {
				opts.defines[k] = v
			}
			opts.features = cfg.EvalFeatures()
		case a == "-D":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-D requires <name>=<value>")
			}
			i++
			if err := opts.addDefine(args[i]); err != nil {
				return nil, err
			}
		case strings.HasPrefix(a, "-D"):
			if err := opts.addDefine(strings.TrimPrefix(a, "-D")); err != nil {
				return nil, err
			}
		case a == "--report-unselected-branch":
			opts.features.ReportUnselectedBranch = true
		case a == "--":
			opts.rest = append(opts.rest, args[i+1:]...)
			return opts, nil
		default:
			opts.rest = append(opts.rest, a)
		}
		i++
	}
	return opts, nil
}

func (o *cliOptions) addDefine(kv string) error {
	eq := strings.IndexByte(kv, '=')
	if eq <= 0 {
		return fmt.Errorf("invalid definition %q, want <name>=<value>", kv)
	}
	o.defines[kv[:eq]] = kv[eq+1:]
	return nil
}

// -----------------------------------------------------------------------------
// eval
// -----------------------------------------------------------------------------

func cmdEval(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 2
	}
	if len(opts.rest) != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s eval [options] <expr|file>\n", appName)
		return 2
	}

	src := opts.rest[0]
	if data, rerr := os.ReadFile(src); rerr == nil {
		src = string(data)
	}

	out, diags, err := evaluate(src, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(fmt.Sprintf("%s: %v", appName, err)))
		return 1
	}
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprint(os.Stderr, red(consteval.RenderDiagnostic(src, d)))
		}
		return 1
	}
	fmt.Println(blue(out))
	return 0
}

// evaluate runs one source string through the reader and a fresh session.
// A non-nil error is a syntax error; diagnostics are evaluation failures.
func evaluate(src string, opts *cliOptions) (string, []consteval.Diagnostic, error) {
	tp := consteval.NewTypeProvider()
	expr, err := consteval.ParseExpr(tp, src)
	if err != nil {
		return "", nil, err
	}

	collector := &consteval.Collector{}
	ev := consteval.NewEvaluator(tp, consteval.NewDeclaredVariables(opts.defines), collector, opts.features)
	v := ev.Evaluate(expr)
	if !v.IsValid() || collector.HasErrors() {
		return "", collector.Diags, nil
	}
	return v.String(), nil, nil
}

// -----------------------------------------------------------------------------
// repl
// -----------------------------------------------------------------------------

func cmdRepl(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 2
	}

	fmt.Println(banner)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, ferr := os.Create(histPath); ferr == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, ferr := os.Open(histPath); ferr == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		line, lerr := ln.Prompt(promptMain)
		if errors.Is(lerr, io.EOF) {
			fmt.Println()
			return 0
		}
		if errors.Is(lerr, liner.ErrPromptAborted) {
			continue
		}
		if lerr != nil {
			return 1
		}

		code := strings.TrimSpace(line)
		if code == "" {
			continue
		}
		if strings.HasPrefix(code, ":") {
			switch strings.ToLower(code) {
			case ":quit":
				return 0
			case ":defines":
				for k, v := range opts.defines {
					fmt.Printf("%s = %q\n", k, v)
				}
			default:
				fmt.Printf("unknown command. Type :quit to exit.\n")
			}
			continue
		}

		out, diags, eerr := evaluate(code, opts)
		if eerr != nil {
			fmt.Fprintln(os.Stderr, red(eerr.Error()))
			continue
		}
		if len(diags) > 0 {
			for _, d := range diags {
				fmt.Fprint(os.Stderr, red(consteval.RenderDiagnostic(code, d)))
			}
			continue
		}
		fmt.Println(green(out))
		ln.AppendHistory(line)
	}
}
