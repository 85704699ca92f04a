package repopool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/utilitywarehouse/svn-mirror/repository"
)

const (
	// DefaultLockFileName is the name of the lock file created under root
	DefaultLockFileName = "update-in-progress"

	// DefaultDisabledPrefix excludes a repository directory from updates
	// when its name starts with it
	DefaultDisabledPrefix = "."
)

// Config is the configuration to create repoPool
type Config struct {
	// Root is the absolute path to the dir which contains one git-svn clone
	// per sub directory
	Root string `yaml:"root"`

	// LockFile is the absolute path of the lock file.
	// if not specified it will be '<root>/update-in-progress'
	LockFile string `yaml:"lock_file"`

	// DisabledPrefix is the directory name prefix of the disabled
	// repositories. default is '.'
	DisabledPrefix string `yaml:"disabled_prefix"`

	// default config for all the repositories if not set
	Defaults repository.Config `yaml:"defaults"`

	// Repositories holds per repository overrides, matched by directory name.
	// repositories without override use defaults
	Repositories []repository.Config `yaml:"repositories"`
}

// validateDefaults will verify root paths and default repository config
// after defaults are applied
func (rpc *Config) validateDefaults() error {
	var errs []error

	if rpc.Root == "" {
		errs = append(errs, fmt.Errorf("repository root is required"))
	} else if !filepath.IsAbs(rpc.Root) {
		errs = append(errs, fmt.Errorf("repository root '%s' must be absolute", rpc.Root))
	}

	if rpc.LockFile != "" && !filepath.IsAbs(rpc.LockFile) {
		errs = append(errs, fmt.Errorf("lock_file '%s' must be absolute", rpc.LockFile))
	}

	if rpc.Defaults.Name != "" {
		errs = append(errs, fmt.Errorf("name can't be set on defaults"))
	}

	if err := rpc.Defaults.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid defaults err:%w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}

	return nil
}

// applyDefaults will add given default config to repository config if where needed
func (rpc *Config) applyDefaults() {
	if rpc.LockFile == "" && rpc.Root != "" {
		rpc.LockFile = filepath.Join(rpc.Root, DefaultLockFileName)
	}

	if rpc.DisabledPrefix == "" {
		rpc.DisabledPrefix = DefaultDisabledPrefix
	}

	rpc.Defaults.ApplyDefaults(repository.DefaultConfig())

	for i := range rpc.Repositories {
		rpc.Repositories[i].ApplyDefaults(rpc.Defaults)
	}
}

// validateRepositories makes sure overrides can be matched to a directory
func (rpc *Config) validateRepositories() error {
	var errs []error

	names := make(map[string]bool)

	for _, repo := range rpc.Repositories {
		switch {
		case repo.Name == "":
			errs = append(errs, fmt.Errorf("repository name is required"))
			continue
		case strings.ContainsRune(repo.Name, filepath.Separator), repo.Name == ".", repo.Name == "..":
			errs = append(errs, fmt.Errorf("repository name '%s' must be a directory name under root", repo.Name))
			continue
		case names[repo.Name]:
			errs = append(errs, fmt.Errorf("repository with name '%s' is configured more than once", repo.Name))
			continue
		}
		names[repo.Name] = true

		if err := repo.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("invalid config for repository '%s' err:%w", repo.Name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}

	return nil
}

// ValidateAndApplyDefaults will apply defaults and validate the config
func (rpc *Config) ValidateAndApplyDefaults() error {
	rpc.applyDefaults()

	if err := rpc.validateDefaults(); err != nil {
		return err
	}

	return rpc.validateRepositories()
}

// repoConfig returns config for the repository in given directory
func (rpc *Config) repoConfig(name string) (repository.Config, bool) {
	for _, repo := range rpc.Repositories {
		if repo.Name == name {
			return repo, true
		}
	}
	conf := rpc.Defaults
	conf.Name = name
	return conf, false
}
