package repository

import (
	"fmt"
	"regexp"
)

const (
	DefaultSVN2GitCommand  = "svn2git"
	DefaultBFGCommand      = "bfg"
	DefaultGitCommand      = "git"
	DefaultSizeLimit       = "50M"
	DefaultRemote          = "origin"
	DefaultBranch          = "master"
	DefaultMaxSyncRestarts = 10
)

// bfg accepts plain bytes or size with K, M or G unit
var sizeLimitRgx = regexp.MustCompile(`^[1-9][0-9]*[KMG]?$`)

// Config represents the config for updating a mirrored repository
type Config struct {
	// Name of the repository directory under root. it's only used to
	// match per repository overrides with the directory
	Name string `yaml:"name"`

	// Commands are the paths of external tools
	Commands Commands `yaml:"commands"`

	// StripBlobsBiggerThan is the size threshold passed to bfg
	// e.g. '50M', '1G', '128K'
	StripBlobsBiggerThan string `yaml:"strip_blobs_bigger_than"`

	// Remote is the name of the preconfigured remote to push to
	Remote string `yaml:"remote"`

	// Branch is the primary branch pushed with tags
	Branch string `yaml:"branch"`

	// MaxSyncRestarts is the number of times svn2git is restarted after
	// git-svn died of signal 13. negative value means no limit
	MaxSyncRestarts int `yaml:"max_sync_restarts"`

	// Auth config to push to remote. if not set push uses the
	// ambient environment (ssh agent, default keys)
	Auth Auth `yaml:"auth"`
}

// Commands holds paths of external tools invoked by the steps
type Commands struct {
	SVN2Git string `yaml:"svn2git"`
	BFG     string `yaml:"bfg"`
	Git     string `yaml:"git"`
}

// Auth represents authentication config of the push remote
type Auth struct {
	// username to use for basic or token based authentication
	Username string `yaml:"username"`

	// password or personal access token to use for authentication
	Password string `yaml:"password"`

	// SSH Details
	// path to the ssh key used to push
	SSHKeyPath string `yaml:"ssh_key_path"`

	// path to the known hosts of the remote host
	SSHKnownHostsPath string `yaml:"ssh_known_hosts_path"`

	// Github APP Details
	// The application id or the client ID of the Github app
	GithubAppID string `yaml:"github_app_id"`
	// The installation id of the app (in the organization).
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	// path to the github app private key
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key_path"`
}

// ApplyDefaults fills empty fields from given defaults
func (c *Config) ApplyDefaults(d Config) {
	if c.Commands.SVN2Git == "" {
		c.Commands.SVN2Git = d.Commands.SVN2Git
	}
	if c.Commands.BFG == "" {
		c.Commands.BFG = d.Commands.BFG
	}
	if c.Commands.Git == "" {
		c.Commands.Git = d.Commands.Git
	}
	if c.StripBlobsBiggerThan == "" {
		c.StripBlobsBiggerThan = d.StripBlobsBiggerThan
	}
	if c.Remote == "" {
		c.Remote = d.Remote
	}
	if c.Branch == "" {
		c.Branch = d.Branch
	}
	if c.MaxSyncRestarts == 0 {
		c.MaxSyncRestarts = d.MaxSyncRestarts
	}
	if (c.Auth == Auth{}) {
		c.Auth = d.Auth
	}
}

// DefaultConfig returns config with built-in defaults
func DefaultConfig() Config {
	return Config{
		Commands: Commands{
			SVN2Git: DefaultSVN2GitCommand,
			BFG:     DefaultBFGCommand,
			Git:     DefaultGitCommand,
		},
		StripBlobsBiggerThan: DefaultSizeLimit,
		Remote:               DefaultRemote,
		Branch:               DefaultBranch,
		MaxSyncRestarts:      DefaultMaxSyncRestarts,
	}
}

// Validate verifies config after defaults are applied
func (c Config) Validate() error {
	var errs []error

	if c.Commands.SVN2Git == "" || c.Commands.BFG == "" || c.Commands.Git == "" {
		errs = append(errs, fmt.Errorf("svn2git, bfg and git commands are required"))
	}

	if !sizeLimitRgx.MatchString(c.StripBlobsBiggerThan) {
		errs = append(errs, fmt.Errorf("invalid strip_blobs_bigger_than value '%s', must be size like 50M, 1G or 128K", c.StripBlobsBiggerThan))
	}

	if c.Remote == "" {
		errs = append(errs, fmt.Errorf("remote name is required"))
	}

	if c.Branch == "" {
		errs = append(errs, fmt.Errorf("branch name is required"))
	}

	// if any of the github app config is set all should be set
	if c.Auth.GithubAppID != "" ||
		c.Auth.GithubAppInstallationID != "" ||
		c.Auth.GithubAppPrivateKeyPath != "" {
		if c.Auth.GithubAppID == "" ||
			c.Auth.GithubAppInstallationID == "" ||
			c.Auth.GithubAppPrivateKeyPath == "" {
			errs = append(errs, fmt.Errorf("all of the Github app attribute is required"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", errs)
	}
	return nil
}
