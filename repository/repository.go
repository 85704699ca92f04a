package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/utilitywarehouse/svn-mirror/internal/utils"
)

const (
	// svn2git output line suffix when git-svn was killed by SIGPIPE
	signal13Marker = "git-svn died of signal 13"

	// bfg leaves its report next to the repository contents
	bfgReportDir = "..bfg-report"

	// exit code of 'git stash drop' when there is no stash entry
	stashNothingToDrop = 1
)

// ErrTooManyRestarts is returned by Sync when svn2git kept dying of signal 13
// more times than configured
var ErrTooManyRestarts = errors.New("too many svn2git restarts")

// step names used in logs and metrics
const (
	stepSync  = "sync"
	stepStrip = "strip"
	stepPush  = "push"
)

// Repository represents a local git-svn clone which is mirrored to the
// remote host.
type Repository struct {
	name string   // name of the repository directory
	dir  string   // absolute path to the repository directory
	conf Config   // config with defaults applied
	envs []string // envs which will be passed to all commands
	log  *slog.Logger

	githubAppToken          string
	githubAppTokenExpiresAt time.Time
}

// UpdateResult holds outcome of each step of an update
type UpdateResult struct {
	Name  string
	Sync  error
	Strip error
	Push  error
}

// Failed returns true if any step failed
func (ur UpdateResult) Failed() bool {
	return ur.Sync != nil || ur.Strip != nil || ur.Push != nil
}

// New creates repository for given directory
func New(dir string, conf Config, envs []string, log *slog.Logger) (*Repository, error) {
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("repository dir '%s' must be absolute", dir)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	name := filepath.Base(dir)

	return &Repository{
		name: name,
		dir:  dir,
		conf: conf,
		envs: envs,
		log:  log.With("repo", name),
	}, nil
}

// Name returns name of the repository directory
func (r *Repository) Name() string {
	return r.name
}

// Dir returns absolute path of the repository directory
func (r *Repository) Dir() string {
	return r.dir
}

// Update runs sync, strip and push steps in order. A failing step is logged
// and doesn't stop the steps after it.
func (r *Repository) Update(ctx context.Context) UpdateResult {
	res := UpdateResult{Name: r.name}

	res.Sync = r.runStep(ctx, stepSync, r.Sync)
	res.Strip = r.runStep(ctx, stepStrip, r.StripBlobs)
	res.Push = r.runStep(ctx, stepPush, r.Push)

	recordUpdate(r.name, !res.Failed())
	return res
}

func (r *Repository) runStep(ctx context.Context, step string, fn func(context.Context) error) error {
	if ctx.Err() != nil {
		r.log.Warn("mirror step skipped", "step", step, "err", ctx.Err())
		return ctx.Err()
	}

	start := time.Now()
	err := fn(ctx)
	updateStepLatency(r.name, step, start)
	recordStep(r.name, step, err == nil)

	if err != nil {
		r.log.Error("mirror step failed", "step", step, "exit-code", utils.ExitCode(err), "err", err)
	}
	return err
}

// syncState is the state of the svn2git run
type syncState int

const (
	syncRunning syncState = iota
	syncRestarting
)

// Sync updates the git-svn clone from the source SVN by running svn2git.
// svn2git is restarted when git-svn died of signal 13.
func (r *Repository) Sync(ctx context.Context) error {
	r.log.Info("Updating local mirror", "path", r.dir)

	restarts := 0
	for {
		state := syncRunning

		err := r.run(ctx, nil, func(line string) {
			if strings.HasSuffix(line, signal13Marker) {
				state = syncRestarting
			}
		}, r.conf.Commands.SVN2Git, "--rebase", "--metadata")

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if state == syncRestarting {
			restarts++
			recordSyncRestart(r.name)
			if r.conf.MaxSyncRestarts >= 0 && restarts > r.conf.MaxSyncRestarts {
				return fmt.Errorf("git-svn died of signal 13 %d times err:%w", restarts, ErrTooManyRestarts)
			}
			r.log.Info("git-svn died of signal 13. Restarting.", "restart", restarts)
			continue
		}

		if err != nil {
			return fmt.Errorf("svn2git rebase failed err:%w", err)
		}

		if hash, err := headHash(r.dir, r.conf.Branch); err != nil {
			r.log.Debug("unable to read local head", "branch", r.conf.Branch, "err", err)
		} else {
			r.log.Info("local mirror updated", "branch", r.conf.Branch, "head", hash)
		}
		return nil
	}
}

// StripBlobs removes blobs bigger than configured size from the repository
// history using BFG and cleans up after it. Cleanup runs even if BFG failed.
func (r *Repository) StripBlobs(ctx context.Context) error {
	r.log.Info("Stripping large files", "limit", r.conf.StripBlobsBiggerThan)

	var errs []error

	if err := r.run(ctx, nil, nil, r.conf.Commands.BFG,
		"--strip-blobs-bigger-than", r.conf.StripBlobsBiggerThan, "--no-blob-protection", "."); err != nil {
		errs = append(errs, fmt.Errorf("bfg failed err:%w", err))
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := r.cleanupBFG(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bfg cleanup failed err:%w", err))
	}

	return errors.Join(errs...)
}

// cleanupBFG removes bfg report and stashes away and drops any changes
// left in the worktree
func (r *Repository) cleanupBFG(ctx context.Context) error {
	if err := removeReportDir(filepath.Join(r.dir, bfgReportDir)); err != nil {
		return err
	}

	// git stash
	if err := r.run(ctx, nil, nil, r.conf.Commands.Git, "stash"); err != nil {
		return err
	}

	// git stash drop
	err := r.run(ctx, nil, nil, r.conf.Commands.Git, "stash", "drop")
	if utils.ExitCode(err) == stashNothingToDrop {
		r.log.Debug("no stash to drop")
		return nil
	}
	return err
}

// Push pushes primary branch with tags to the preconfigured remote
func (r *Repository) Push(ctx context.Context) error {
	r.log.Info("Pushing updates", "remote", r.conf.Remote, "branch", r.conf.Branch)

	envs, err := r.authEnv(ctx)
	if err != nil {
		return fmt.Errorf("unable to setup push auth err:%w", err)
	}

	// git push -u --tags <remote> <branch>
	if err := r.run(ctx, envs, nil, r.conf.Commands.Git, "push", "-u", "--tags", r.conf.Remote, r.conf.Branch); err != nil {
		return fmt.Errorf("git push failed err:%w", err)
	}
	return nil
}

// run runs command in repository dir and logs its output at debug level.
// onLine is called for every output line if set
func (r *Repository) run(ctx context.Context, envs []string, onLine func(string), command string, args ...string) error {
	cmdName := filepath.Base(command)
	allEnvs := append(append([]string{}, r.envs...), envs...)

	return utils.StreamCommand(ctx, r.log, allEnvs, r.dir, func(line string) {
		r.log.Debug("output", "cmd", cmdName, "line", line)
		if onLine != nil {
			onLine(line)
		}
	}, command, args...)
}

// removeReportDir removes given dir, missing dir is not an error
func removeReportDir(path string) error {
	_, err := os.Lstat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("unable to check report dir err:%w", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("unable to remove report dir err:%w", err)
	}
	return nil
}
