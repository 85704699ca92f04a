package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/urfave/cli/v3"
	"github.com/utilitywarehouse/svn-mirror/lockfile"
	"github.com/utilitywarehouse/svn-mirror/logging"
	"github.com/utilitywarehouse/svn-mirror/repopool"
	"github.com/utilitywarehouse/svn-mirror/repository"
)

const metricsNamespace = "svn_mirror"

const description = `Update git-svn mirrors of SVN repositories, and then push them to the
mirrored repositories on the remote host (GitHub).

Every directory under root is a git-svn clone which is already set up with
the remote and credentials to push. for each repository svn2git is run to
fetch new SVN revisions, files bigger than the limit are stripped from
history with BFG and the branch is pushed with tags.

When git-svn dies of signal 13 svn2git is restarted, at most
max_sync_restarts times per run (default 10). Set max_sync_restarts to a
negative value to restart without a limit.

To disable synchronization of a repository rename its directory so that it
starts with '.' (disabled_prefix).`

// errFailedRun is returned after the failure was already logged
var errFailedRun = errors.New("update failed")

var (
	lastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_run_successful",
		Help:      "Whether all the repositories were updated successfully in the last run.",
	})
	lastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Timestamp of the end of the last run.",
	})
)

// newFlags returns new flag set, flags keep parsed values so they can't be
// shared between commands
func newFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("SVN_MIRROR_CONFIG"),
			Value:   defaultConfigPath,
			Usage:   "Absolute path to the config file. Missing default config file is ignored.",
		},
		&cli.StringFlag{
			Name:    "root",
			Sources: cli.EnvVars("SVN_MIRROR_ROOT"),
			Usage:   "Absolute path to the dir with git-svn clones. (default: " + defaultRoot + ")",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Path to the log file. (default: " + defaultLogFile + ")",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "debug",
			Usage:   "Log level of the log file (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "console-level",
			Value: "error",
			Usage: "Log level of the console (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Path of the prometheus text file to write metrics to at the end of the run.",
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:        "svn-mirror",
		Usage:       "svn-mirror updates git-svn mirrors and pushes them to the remote host.",
		Description: description,
		Flags:       newFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			fileLevel, err := logging.ParseLevel(c.String("log-level"))
			if err != nil {
				return err
			}
			consoleLevel, err := logging.ParseLevel(c.String("console-level"))
			if err != nil {
				return err
			}

			conf, err := loadConfig(c)
			if err != nil {
				return err
			}

			logger, closer, err := logging.New(logging.Options{
				Console:      os.Stderr,
				ConsoleLevel: consoleLevel,
				FilePath:     conf.LogFile,
				FileLevel:    fileLevel,
			})
			if err != nil {
				return fmt.Errorf("unable to open log file err:%w", err)
			}
			defer closer.Close()

			if err := run(ctx, conf, logger); err != nil {
				// lock held is already logged as warning
				if !errors.Is(err, lockfile.ErrLocked) {
					logger.Error("update finished with failures", "err", err)
				}
				return errFailedRun
			}
			return nil
		},
	}
}

// run updates all the repositories and writes metrics file. error is returned
// if the run couldn't complete or any repository step failed
func run(ctx context.Context, conf *Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	repository.EnableMetrics(metricsNamespace, reg)
	reg.MustRegister(lastRunSuccess, lastRunTimestamp)

	if conf.MetricsFile != "" {
		restoreLastSuccess(conf.MetricsFile, logger)
	}

	pool, err := repopool.New(conf.Config, logger, []string{
		// never wait for credentials on terminal
		"GIT_TERMINAL_PROMPT=0",
	})
	if err != nil {
		return fmt.Errorf("invalid config err:%w", err)
	}

	summary, err := pool.UpdateAll(ctx)
	if errors.Is(err, lockfile.ErrLocked) {
		// metrics belong to the running update
		return err
	}

	if summary != nil {
		if failed := summary.Failed(); len(failed) > 0 {
			err = errors.Join(err, fmt.Errorf("failed repositories: %s", strings.Join(failed, ", ")))
		}
	}

	if err == nil {
		lastRunSuccess.Set(1)
	} else {
		lastRunSuccess.Set(0)
	}
	lastRunTimestamp.SetToCurrentTime()

	if conf.MetricsFile != "" {
		if mErr := prometheus.WriteToTextfile(conf.MetricsFile, reg); mErr != nil {
			logger.Error("unable to write metrics file", "path", conf.MetricsFile, "err", mErr)
		}
	}

	return err
}

// restoreLastSuccess loads last success timestamps from the metrics file of the
// previous run so repositories failing in this run keep their last value
func restoreLastSuccess(path string, logger *slog.Logger) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		logger.Warn("unable to read previous metrics file", "path", path, "err", err)
		return
	}
	defer f.Close()

	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		logger.Warn("unable to parse previous metrics file", "path", path, "err", err)
		return
	}

	mf, ok := families[metricsNamespace+"_last_success_timestamp"]
	if !ok {
		return
	}
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "repo" {
				repository.SetLastSuccess(l.GetValue(), time.Unix(int64(m.GetGauge().GetValue()), 0))
			}
		}
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newCommand().Run(ctx, os.Args)
	stop()

	if err != nil {
		if !errors.Is(err, errFailedRun) {
			slog.New(logging.NewHandler(os.Stderr, slog.LevelError)).Error("failed to run app", "err", err)
		}
		os.Exit(1)
	}
}
