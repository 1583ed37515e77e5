// Command precommit runs the repository commit gate: it applies each
// configured hook to the staged file set and exits nonzero if any hook
// fails, blocking the commit.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hearthside-robotics/homerover/internal/hooks"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "run":
		err = handleRun(ctx, args)
	case "validate":
		err = handleValidate(ctx, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "precommit: %v\n", err)
		os.Exit(1)
	}
}

func handleRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", hooks.DefaultConfigPath, "Path to the hook config file")
	dir := fs.String("dir", ".", "Repository root to run in")
	allFiles := fs.Bool("all-files", false, "Run over every tracked file instead of the staged set")
	dryRun := fs.Bool("dry-run", false, "Print what would run without invoking any tool")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := hooks.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// Explicit file arguments override git discovery.
	files := fs.Args()
	if len(files) == 0 {
		if *allFiles {
			files, err = hooks.AllFiles(ctx, *dir)
		} else {
			files, err = hooks.StagedFiles(ctx, *dir)
		}
		if err != nil {
			return err
		}
	}
	if len(files) == 0 {
		fmt.Println("precommit: no files to check")
		return nil
	}

	runner := hooks.NewRunner(cfg, *dir)
	runner.DryRun = *dryRun
	report, err := runner.Run(ctx, files)
	if err != nil {
		return err
	}

	for _, res := range report.Results {
		switch {
		case res.Skipped:
			fmt.Printf("%-24s skipped (no files)\n", res.HookID)
		case res.Passed:
			fmt.Printf("%-24s passed  (%d files, %s)\n", res.HookID, res.FileCount, res.Duration.Round(1e6))
		default:
			fmt.Printf("%-24s FAILED  (%d files)\n", res.HookID, res.FileCount)
			if out := strings.TrimSpace(res.Output); out != "" {
				fmt.Println(indent(out))
			}
		}
	}

	if !report.Passed() {
		return fmt.Errorf("%d hook(s) failed", len(report.Failed()))
	}
	return nil
}

func handleValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", hooks.DefaultConfigPath, "Path to the hook config file")
	checkRevs := fs.Bool("check-revs", false, "Also verify each rev exists in its remote repository")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := hooks.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *checkRevs {
		if err := cfg.CheckRevs(ctx); err != nil {
			return err
		}
	}
	fmt.Printf("precommit: config OK (%d repos, %d hooks)\n", len(cfg.Repos), cfg.HookCount())
	return nil
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: precommit <command> [options]

Commands:
  run       Run the hook pipeline over the staged files (or --all-files)
  validate  Check the hook config (add --check-revs to verify pinned revs)
  help      Show this message

Run 'precommit <command> -h' for command options.
`)
}
