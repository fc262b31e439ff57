// Storyscript compiles chapter documents and plays them in the terminal.
// Usage: storyscript [flags] <chapter.story>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/storyscript/cli"
	"github.com/nathoo/storyscript/config"
	"github.com/nathoo/storyscript/engine"
	"github.com/nathoo/storyscript/engine/conditions"
	"github.com/nathoo/storyscript/engine/save"
	"github.com/nathoo/storyscript/engine/state"
	"github.com/nathoo/storyscript/loader"
	"github.com/nathoo/storyscript/logging"
	"github.com/nathoo/storyscript/tui"
	"github.com/nathoo/storyscript/types"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("storyscript", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: storyscript [flags] <chapter.story>\n")
		fs.PrintDefaults()
	}
	config.AddFlags(fs)
	cfgPath := fs.String("config", "", "configuration file")
	check := fs.Bool("check", false, "compile the chapter, report problems and exit")
	dump := fs.Bool("dump", false, "print the compiled chapter as YAML and exit")
	replay := fs.String("replay", "", "play commands from a file, echoing them")
	trace := fs.Bool("trace", false, "show applied actions after each command")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(stdout, "storyscript %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}
	if fs.NArg() > 0 {
		if err := fs.Set("chapter", fs.Arg(0)); err != nil {
			return err
		}
	}

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cp, err := loader.Load(cfg.Chapter, loader.WithLogger(log))
	if err != nil {
		return fmt.Errorf("loading chapter: %w", err)
	}

	switch {
	case *check:
		fmt.Fprintf(stdout, "%s: ok (%d locations, %d actions, %d dialogues)\n",
			cfg.Chapter, len(cp.Map.Locations), len(cp.Map.Actions), len(cp.Map.Dialogues))
		return nil
	case *dump:
		return dumpCheckpoint(stdout, cp)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := stdin
	if *replay != "" {
		f, err := os.Open(*replay)
		if err != nil {
			return fmt.Errorf("opening replay: %w", err)
		}
		defer f.Close()
		in = f
	}
	plain := cfg.UI == config.UIPlain || *replay != "" || !isTerminal(stdout)

	c := cli.New()
	c.In, c.Out = in, stdout
	c.EchoInput = *replay != ""
	c.Trace = *trace

	var (
		prompter conditions.Prompter
		tp       *tui.Prompter
	)
	switch cfg.Mode {
	case config.ModeInteractive:
		if plain {
			prompter = c
		} else {
			tp = tui.NewPrompter()
			prompter = tp
		}
	case config.ModeScript:
		lp, err := conditions.LoadLuaPrompter(cfg.Script)
		if err != nil {
			return err
		}
		defer lp.Close()
		prompter = lp
	}

	build := func(st *state.Manager) *engine.Engine {
		var r conditions.Resolver = conditions.StateResolver{State: st}
		if prompter != nil {
			r = conditions.PromptResolver{State: st, Prompter: prompter}
		}
		ev := conditions.NewEvaluator(r,
			conditions.WithTimeout(cfg.PromptTimeout),
			conditions.WithLogger(log))
		return engine.New(st, engine.WithEvaluator(ev), engine.WithLogger(log))
	}

	st, sd, _ := save.ResumeFile(cp, cfg.SavePath(), log)
	s := engine.NewSession(st, build, cfg.SavePath(), log)
	if sd != nil {
		engine.WithTurns(sd.Turn)(s.Engine)
	}

	if plain {
		err = c.Run(ctx, s)
	} else {
		err = tui.Run(ctx, s, tp)
	}
	if err != nil {
		return err
	}

	path, err := s.Save("")
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	log.Info("progress saved", zap.String("path", path))
	return nil
}

// dumpCheckpoint writes the compiled chapter as YAML.
func dumpCheckpoint(w io.Writer, cp *types.Checkpoint) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cp); err != nil {
		return fmt.Errorf("encoding chapter: %w", err)
	}
	return enc.Close()
}

// isTerminal returns true if w is a terminal (not piped/redirected).
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
