package repository

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want Config
	}{
		{
			name: "empty",
			conf: Config{Name: "repo1"},
			want: func() Config { c := DefaultConfig(); c.Name = "repo1"; return c }(),
		},
		{
			name: "overrides_kept",
			conf: Config{
				Name:                 "repo2",
				Commands:             Commands{Git: "/usr/local/bin/git"},
				StripBlobsBiggerThan: "100M",
				Branch:               "trunk",
				MaxSyncRestarts:      -1,
				Auth:                 Auth{SSHKeyPath: "/etc/keys/repo2"},
			},
			want: Config{
				Name: "repo2",
				Commands: Commands{
					SVN2Git: DefaultSVN2GitCommand,
					BFG:     DefaultBFGCommand,
					Git:     "/usr/local/bin/git",
				},
				StripBlobsBiggerThan: "100M",
				Remote:               DefaultRemote,
				Branch:               "trunk",
				MaxSyncRestarts:      -1,
				Auth:                 Auth{SSHKeyPath: "/etc/keys/repo2"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.conf.ApplyDefaults(DefaultConfig())
			if diff := cmp.Diff(tt.want, tt.conf); diff != "" {
				t.Errorf("ApplyDefaults() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"size_bytes", func(c *Config) { c.StripBlobsBiggerThan = "1048576" }, false},
		{"size_gig", func(c *Config) { c.StripBlobsBiggerThan = "1G" }, false},
		{"size_invalid_unit", func(c *Config) { c.StripBlobsBiggerThan = "50MB" }, true},
		{"size_zero", func(c *Config) { c.StripBlobsBiggerThan = "0M" }, true},
		{"size_empty", func(c *Config) { c.StripBlobsBiggerThan = "" }, true},
		{"no_git", func(c *Config) { c.Commands.Git = "" }, true},
		{"no_remote", func(c *Config) { c.Remote = "" }, true},
		{"no_branch", func(c *Config) { c.Branch = "" }, true},
		{"github_app_complete", func(c *Config) {
			c.Auth = Auth{GithubAppID: "1", GithubAppInstallationID: "2", GithubAppPrivateKeyPath: "/key"}
		}, false},
		{"github_app_partial", func(c *Config) {
			c.Auth = Auth{GithubAppID: "1", GithubAppPrivateKeyPath: "/key"}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
