// Package repopool updates all the SVN mirrors found under a root directory.
// Every sub directory of the root is a git-svn clone, a repository is
// disabled by renaming its directory so that it starts with the disabled
// prefix ('.' by default). A run is guarded by a lock file so that only one
// update can run at a time, repositories are updated sequentially.
//
// # Usages
//
//	conf := repopool.Config{
//		Root: "/srv/svn-clones",
//		Defaults: repository.Config{
//			StripBlobsBiggerThan: "50M",
//		},
//	}
//
//	pool, err := repopool.New(conf, logger, nil)
//	if err != nil {
//		panic(err)
//	}
//
//	summary, err := pool.UpdateAll(ctx)
//	if err != nil {
//		// lock held, root unreadable or lock not released
//	}
//	if failed := summary.Failed(); len(failed) > 0 {
//		// at least one step failed for these repositories
//	}
//
// # Logging:
//
// package takes slog reference for logging and prints logs up to 'trace' level
package repopool
