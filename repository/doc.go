// Package repository updates a single SVN mirror. Each repository is a local
// git-svn clone (created by svn2git) with a preconfigured push remote.
// An update runs 3 steps in order:
//
//   - sync: `svn2git --rebase --metadata`, restarted whenever git-svn died of
//     signal 13 (SIGPIPE) on a long fetch.
//   - strip: `bfg --strip-blobs-bigger-than <size> --no-blob-protection .`
//     followed by removal of the bfg report and `git stash` + `git stash drop`.
//   - push: `git push -u --tags <remote> <branch>`.
//
// A failed step is logged and the remaining steps are still attempted.
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level.
// every command output line is logged at debug level with the command name.
//
// Example:
//
//	logger, closer, err := logging.New(logging.Options{
//		Console:  os.Stderr,
//		FilePath: "/var/log/svn-mirror.log",
//	})
//	if err != nil {
//		panic(err)
//	}
//	defer closer.Close()
//
//	repo, err := repository.New("/srv/mirrors/project", conf, nil, logger)
//	if err != nil {
//		panic(err)
//	}
//	res := repo.Update(ctx)
package repository
