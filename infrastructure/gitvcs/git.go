// Package gitvcs implements the version-control port on top of the git
// command line.
package gitvcs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/clamsproject/dashboard/internal/ports"
)

// Runner executes git commands in a working copy.
type Runner interface {
	Run(ctx context.Context, dir string, args []string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, ports.NewVCSError(dir, args, string(out), err)
	}
	return out, nil
}

// Repo is a git working copy.
type Repo struct {
	dir    string
	runner Runner
}

// Option configures a Repo.
type Option func(*Repo)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(repo *Repo) { repo.runner = r }
}

// Open returns a Repo for the working copy at dir.
func Open(dir string, opts ...Option) *Repo {
	r := &Repo{dir: dir, runner: execRunner{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	out, err := r.runner.Run(ctx, r.dir, args)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// CurrentRevision reports HEAD. Branch is empty on a detached head.
func (r *Repo) CurrentRevision(ctx context.Context) (ports.Revision, error) {
	commit, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return ports.Revision{}, fmt.Errorf("%w: %w", ports.ErrVCSUnavailable, err)
	}
	short, err := r.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return ports.Revision{}, fmt.Errorf("%w: %w", ports.ErrVCSUnavailable, err)
	}
	branch, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ports.Revision{}, fmt.Errorf("%w: %w", ports.ErrVCSUnavailable, err)
	}
	if branch == "HEAD" {
		branch = ""
	}
	return ports.Revision{Commit: commit, Short: short, Branch: branch}, nil
}

// ListRevisions returns the local branch names in ascending order.
func (r *Repo) ListRevisions(ctx context.Context) ([]string, error) {
	out, err := r.git(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrVCSUnavailable, err)
	}
	branches := []string{}
	for line := range strings.Lines(out) {
		if b := strings.TrimSpace(line); b != "" {
			branches = append(branches, b)
		}
	}
	slices.Sort(branches)
	return branches, nil
}

// Checkout switches the working copy to revision.
func (r *Repo) Checkout(ctx context.Context, revision string) error {
	if revision == "" || strings.HasPrefix(revision, "-") {
		return fmt.Errorf("%w: %q", ports.ErrRevisionNotFound, revision)
	}
	if _, err := r.git(ctx, "rev-parse", "--verify", "--quiet", revision+"^{commit}"); err != nil {
		return fmt.Errorf("%w: %q", ports.ErrRevisionNotFound, revision)
	}
	if _, err := r.git(ctx, "checkout", "--quiet", revision); err != nil {
		return fmt.Errorf("checkout %s: %w", revision, err)
	}
	return nil
}

// WorkingTreeStatus parses the porcelain status of the working copy.
func (r *Repo) WorkingTreeStatus(ctx context.Context) (ports.WorkingTreeStatus, error) {
	out, err := r.runner.Run(ctx, r.dir, []string{"status", "--porcelain", "--untracked-files=all"})
	if err != nil {
		return ports.WorkingTreeStatus{}, fmt.Errorf("%w: %w", ports.ErrVCSUnavailable, err)
	}
	return ParseStatus(out)
}

// ParseStatus parses the output of git status --porcelain (version 1).
// Renames are reported under their new path.
func ParseStatus(out []byte) (ports.WorkingTreeStatus, error) {
	var status ports.WorkingTreeStatus
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if len(line) < 4 || line[2] != ' ' {
			return ports.WorkingTreeStatus{}, fmt.Errorf("malformed status line %q", line)
		}
		code, path := line[:2], unquote(line[3:])
		if code == "??" {
			status.Untracked = append(status.Untracked, path)
			continue
		}
		if code == "!!" {
			continue
		}
		if _, to, ok := strings.Cut(path, " -> "); ok {
			path = unquote(to)
		}
		status.Changes = append(status.Changes, ports.FileChange{
			ChangeType: changeType(code),
			Path:       path,
		})
	}
	if err := sc.Err(); err != nil {
		return ports.WorkingTreeStatus{}, err
	}
	return status, nil
}

// changeType prefers the index column, falling back to the worktree column.
func changeType(code string) string {
	if code[0] != ' ' {
		return string(code[0])
	}
	return string(code[1])
}

// unquote removes the C-style quoting git applies to unusual paths.
func unquote(p string) string {
	if len(p) >= 2 && p[0] == '"' {
		if u, err := strconv.Unquote(p); err == nil {
			return u
		}
	}
	return p
}

// IsRepository reports whether dir is inside a git working copy.
func IsRepository(ctx context.Context, dir string) bool {
	return isRepository(ctx, dir, execRunner{})
}

func isRepository(ctx context.Context, dir string, runner Runner) bool {
	out, err := runner.Run(ctx, dir, []string{"rev-parse", "--is-inside-work-tree"})
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

var _ ports.VersionControl = (*Repo)(nil)
