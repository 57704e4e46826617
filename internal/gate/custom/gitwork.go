package custom

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

const (
	// Subprocess git is bounded so a slow repository cannot stall the hook;
	// the host runtime blocks until this process exits.
	defaultGitTimeout = 5 * time.Second
	maxGitTimeout     = 30 * time.Second
)

// GitWorkChecker reports whether the working directory has uncommitted work.
//
// `git status --porcelain` is the primary probe because it honors the
// repository's own ignore rules and is fast on warm caches. When the git
// binary is unavailable the checker falls back to go-git's worktree status.
// A directory that is not a repository reads as "no uncommitted work".
type GitWorkChecker struct {
	Timeout time.Duration
	Log     *zap.Logger
}

// NewGitWorkChecker builds a checker with a bounded subprocess timeout.
func NewGitWorkChecker(timeout time.Duration, log *zap.Logger) *GitWorkChecker {
	if timeout <= 0 {
		timeout = defaultGitTimeout
	}
	if timeout > maxGitTimeout {
		timeout = maxGitTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GitWorkChecker{Timeout: timeout, Log: log}
}

// Check reports true when the event's working directory contains uncommitted
// changes. It records the dirty-file count and a block reason in the gate's
// metrics for later template rendering.
func (c *GitWorkChecker) Check(ctx context.Context, inv *Invocation) (bool, error) {
	dir := inv.Event.Cwd
	if dir == "" {
		return false, nil
	}

	// Cheap repository probe first; PlainOpen walks up to find .git.
	if _, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true}); err != nil {
		return false, nil
	}

	dirty, err := c.porcelainStatus(ctx, dir)
	if err != nil {
		c.Log.Debug("git subprocess status failed, trying go-git",
			zap.String("dir", dir), zap.Error(err))
		dirty, err = worktreeStatus(dir)
		if err != nil {
			return false, fmt.Errorf("checking uncommitted work in %s: %w", dir, err)
		}
	}

	if dirty > 0 && inv.State != nil {
		inv.State.SetMetric("dirty_files", strconv.Itoa(dirty))
		inv.State.SetMetric("block_reason", fmt.Sprintf("%d uncommitted file(s) in %s", dirty, dir))
	}
	return dirty > 0, nil
}

// porcelainStatus counts dirty paths via subprocess git with a hard timeout.
func (c *GitWorkChecker) porcelainStatus(ctx context.Context, dir string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "status", "--porcelain")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("git status: %w", err)
	}

	dirty := 0
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			dirty++
		}
	}
	return dirty, nil
}

// worktreeStatus counts dirty paths via go-git.
func worktreeStatus(dir string) (int, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return 0, fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return 0, fmt.Errorf("resolving worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return 0, fmt.Errorf("reading worktree status: %w", err)
	}

	dirty := 0
	for _, fs := range status {
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			dirty++
		}
	}
	return dirty, nil
}
