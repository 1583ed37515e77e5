package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hearthside-robotics/homerover/internal/monitoring"
)

// builtinEntries maps well-known hook IDs to the executables they invoke.
// Hooks absent from this table run an executable named after their ID.
var builtinEntries = map[string]string{
	"black":                   "black",
	"isort":                   "isort",
	"flake8":                  "flake8",
	"mypy":                    "mypy",
	"trailing-whitespace":     "trailing-whitespace-fixer",
	"end-of-file-fixer":       "end-of-file-fixer",
	"check-yaml":              "check-yaml",
	"check-added-large-files": "check-added-large-files",
}

// ResolveEntry returns the executable this hook invokes.
func (h *Hook) ResolveEntry() string {
	if h.Entry != "" {
		return h.Entry
	}
	if entry, ok := builtinEntries[h.ID]; ok {
		return entry
	}
	return h.ID
}

// HookResult records one hook invocation.
type HookResult struct {
	RepoURL   string
	HookID    string
	Entry     string
	FileCount int
	Skipped   bool // no files left after filtering
	Passed    bool
	Output    string
	Duration  time.Duration
	Err       error
}

// Report aggregates the results of one pipeline run.
type Report struct {
	Results []HookResult
}

// Passed reports whether every non-skipped hook exited cleanly. A pipeline
// with nothing to do passes.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			return false
		}
	}
	return true
}

// Failed returns the results of hooks that failed.
func (r *Report) Failed() []HookResult {
	var out []HookResult
	for _, res := range r.Results {
		if !res.Skipped && !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Runner executes a hook pipeline over a file set.
type Runner struct {
	Config *Config

	// Dir is the working directory for tool invocations (repo root).
	Dir string

	// DryRun logs what would be executed without invoking any tool.
	DryRun bool
}

// NewRunner creates a runner for the given config rooted at dir.
func NewRunner(cfg *Config, dir string) *Runner {
	return &Runner{Config: cfg, Dir: dir}
}

// Run applies every hook to its filtered subset of files and returns the
// aggregate report. Hooks run sequentially in declaration order; a failure
// does not stop later hooks, so the committer sees every problem at once.
func (r *Runner) Run(ctx context.Context, files []string) (*Report, error) {
	if r.Config == nil {
		return nil, fmt.Errorf("hooks: runner has no config")
	}

	report := &Report{}
	for _, repo := range r.Config.Repos {
		for _, hook := range repo.Hooks {
			res := r.runHook(ctx, repo, hook, files)
			report.Results = append(report.Results, res)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}
	}
	return report, nil
}

func (r *Runner) runHook(ctx context.Context, repo Repo, hook Hook, files []string) HookResult {
	res := HookResult{
		RepoURL: repo.Repo,
		HookID:  hook.ID,
		Entry:   hook.ResolveEntry(),
	}

	subset := hook.FilterFiles(files)
	res.FileCount = len(subset)
	if len(subset) == 0 {
		res.Skipped = true
		res.Passed = true
		monitoring.Debugf("hook %s: no files after filtering, skipped", hook.ID)
		return res
	}

	args := append(append([]string{}, hook.Args...), subset...)
	if r.DryRun {
		monitoring.Logf("[dry-run] would run: %s %s", res.Entry, strings.Join(args, " "))
		res.Passed = true
		return res
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, res.Entry, args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	res.Duration = time.Since(start)
	res.Output = string(out)

	if err != nil {
		res.Err = fmt.Errorf("hook %s (%s) failed: %w", hook.ID, res.Entry, err)
		return res
	}
	res.Passed = true
	return res
}

// StagedFiles lists the files staged for commit in dir: added, copied,
// modified, or renamed. Deleted files are never handed to a tool.
func StagedFiles(ctx context.Context, dir string) ([]string, error) {
	return gitListFiles(ctx, dir, "diff", "--cached", "--name-only", "--diff-filter=ACMR", "-z")
}

// AllFiles lists every tracked file in dir, for --all-files runs.
func AllFiles(ctx context.Context, dir string) ([]string, error) {
	return gitListFiles(ctx, dir, "ls-files", "-z")
}

func gitListFiles(ctx context.Context, dir string, args ...string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("hooks: git %s: %w", args[0], err)
	}
	var files []string
	for _, f := range strings.Split(string(out), "\x00") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}
