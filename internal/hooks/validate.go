package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// fullSHA matches a complete 40-character commit hash.
var fullSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

// versionTag matches release-style tags such as 22.3.0 or v0.960.
var versionTag = regexp.MustCompile(`^v?\d+(\.[0-9A-Za-z-]+)*$`)

// Validate checks the structural properties of the config: every repo entry
// has a non-empty repo URL and a rev pinned to a full commit hash or a
// version tag (branch names are not reproducible and are rejected), every
// hook has an ID, and every files/exclude pattern compiles.
func (c *Config) Validate() error {
	if len(c.Repos) == 0 {
		return fmt.Errorf("hooks: config declares no repos")
	}
	for i, r := range c.Repos {
		if strings.TrimSpace(r.Repo) == "" {
			return fmt.Errorf("hooks: repo %d has an empty repo URL", i)
		}
		if strings.TrimSpace(r.Rev) == "" {
			return fmt.Errorf("hooks: repo %s has an empty rev", r.Repo)
		}
		if !fullSHA.MatchString(r.Rev) && !versionTag.MatchString(r.Rev) {
			return fmt.Errorf("hooks: repo %s rev %q is neither a full commit hash nor a version tag", r.Repo, r.Rev)
		}
		if len(r.Hooks) == 0 {
			return fmt.Errorf("hooks: repo %s declares no hooks", r.Repo)
		}
		for _, h := range r.Hooks {
			if strings.TrimSpace(h.ID) == "" {
				return fmt.Errorf("hooks: repo %s has a hook with an empty id", r.Repo)
			}
			if _, err := CompilePattern(h.Files); err != nil {
				return fmt.Errorf("hooks: %s files pattern: %w", h.ID, err)
			}
			if _, err := CompilePattern(h.Exclude); err != nil {
				return fmt.Errorf("hooks: %s exclude pattern: %w", h.ID, err)
			}
		}
	}
	return nil
}

// CheckRevs verifies that each repo's tag rev exists in its remote via
// `git ls-remote`. Full 40-char commit hashes are accepted on syntax alone:
// ls-remote only lists ref tips, so an older pinned commit cannot be
// confirmed without a clone.
func (c *Config) CheckRevs(ctx context.Context) error {
	for _, r := range c.Repos {
		if fullSHA.MatchString(r.Rev) {
			continue
		}
		if err := checkRemoteRev(ctx, r.Repo, r.Rev); err != nil {
			return err
		}
	}
	return nil
}

func checkRemoteRev(ctx context.Context, repoURL, rev string) error {
	// Ask for the rev both as a plain ref and as a dereferenced tag.
	cmd := exec.CommandContext(ctx, "git", "ls-remote", "--refs", repoURL, rev, "refs/tags/"+rev)
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("hooks: ls-remote %s: %w", repoURL, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return fmt.Errorf("hooks: rev %q not found in %s", rev, repoURL)
	}
	return nil
}

// CompilePattern compiles a path filter pattern. An empty pattern returns a
// nil regexp, meaning "match nothing" for excludes and "match everything"
// for includes. Patterns written in verbose mode (leading "(?x)", as the
// upstream tool configs use for readability) are normalised first, since
// RE2 has no verbose flag.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile(normalizeVerbose(pattern))
}

// normalizeVerbose strips a leading (?x) flag along with the insignificant
// whitespace and #-comments verbose mode allows.
func normalizeVerbose(pattern string) string {
	trimmed := strings.TrimSpace(pattern)
	if !strings.HasPrefix(trimmed, "(?x)") {
		return pattern
	}
	trimmed = strings.TrimPrefix(trimmed, "(?x)")
	var b strings.Builder
	for _, line := range strings.Split(trimmed, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		for _, field := range strings.Fields(line) {
			b.WriteString(field)
		}
	}
	return b.String()
}
