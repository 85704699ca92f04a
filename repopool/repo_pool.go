package repopool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/utilitywarehouse/svn-mirror/lockfile"
	"github.com/utilitywarehouse/svn-mirror/repository"
)

// RepoPool represents the collection of mirrored repositories under a root.
// Repositories are discovered on every run so adding or disabling one
// doesn't need a config change.
type RepoPool struct {
	conf       Config
	log        *slog.Logger
	commonENVs []string
}

// Summary holds results of all the repositories updated in a run
type Summary struct {
	Repositories []repository.UpdateResult
}

// Failed returns names of the repositories with at least one failed step
func (s *Summary) Failed() []string {
	var failed []string
	for _, r := range s.Repositories {
		if r.Failed() {
			failed = append(failed, r.Name)
		}
	}
	return failed
}

// New will create repository pool based on given config.
// Repositories will not be updated until UpdateAll() is called
func New(conf Config, log *slog.Logger, commonENVs []string) (*RepoPool, error) {
	if err := conf.ValidateAndApplyDefaults(); err != nil {
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}

	return &RepoPool{
		conf:       conf,
		log:        log,
		commonENVs: commonENVs,
	}, nil
}

// UpdateAll claims the lock and updates all enabled repositories under root
// one at a time. Step failures are reported in the returned summary and
// never stop the run. An error is returned if the lock can't be claimed or
// released, root can't be listed or the context was cancelled.
func (rp *RepoPool) UpdateAll(ctx context.Context) (summary *Summary, err error) {
	rp.log.Info("Starting update", "root", rp.conf.Root)

	lk, err := lockfile.Acquire(rp.conf.LockFile, rp.log)
	if err != nil {
		return nil, err
	}

	summary = &Summary{}

	defer func() {
		if rErr := lk.Release(); rErr != nil {
			err = errors.Join(err, rErr)
		}
		rp.log.Info("Finished update", "updated", len(summary.Repositories), "failed", len(summary.Failed()))
	}()

	dirs, err := Discover(rp.conf.Root, rp.conf.DisabledPrefix)
	if err != nil {
		rp.log.Error("unable to list repositories", "root", rp.conf.Root, "err", err)
		return summary, err
	}

	rp.warnUnmatchedOverrides(dirs)

	for _, dir := range dirs {
		if ctx.Err() != nil {
			rp.log.Warn("update interrupted", "err", ctx.Err())
			return summary, ctx.Err()
		}

		conf, _ := rp.conf.repoConfig(filepath.Base(dir))

		repo, err := repository.New(dir, conf, rp.commonENVs, rp.log)
		if err != nil {
			// config is validated on New so this is not expected
			rp.log.Error("unable to create repository", "repo", conf.Name, "err", err)
			summary.Repositories = append(summary.Repositories, repository.UpdateResult{Name: conf.Name, Sync: err})
			continue
		}

		summary.Repositories = append(summary.Repositories, repo.Update(ctx))
	}

	return summary, nil
}

func (rp *RepoPool) warnUnmatchedOverrides(dirs []string) {
	for _, repo := range rp.conf.Repositories {
		if !slices.Contains(dirs, filepath.Join(rp.conf.Root, repo.Name)) {
			rp.log.Warn("configured repository not found or disabled", "repo", repo.Name)
		}
	}
}

// Discover returns absolute paths of the immediate sub directories of root
// sorted by name. Entries with name starting with disabledPrefix and
// non-directory entries are skipped. A symlink is included only if it
// resolves to a directory.
func Discover(root, disabledPrefix string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute root path err:%w", err)
	}

	// ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("unable to read root dir err:%w", err)
	}

	var dirs []string
	for _, e := range entries {
		if disabledPrefix != "" && strings.HasPrefix(e.Name(), disabledPrefix) {
			continue
		}

		path := filepath.Join(root, e.Name())

		switch {
		case e.IsDir():
		case e.Type()&os.ModeSymlink != 0:
			fi, err := os.Stat(path)
			if err != nil || !fi.IsDir() {
				continue
			}
		default:
			continue
		}

		dirs = append(dirs, path)
	}

	return dirs, nil
}
