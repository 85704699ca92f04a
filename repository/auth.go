package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/utilitywarehouse/svn-mirror/auth"
	"github.com/utilitywarehouse/svn-mirror/giturl"
)

const loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`

// githubAPIURL is overridden in tests
var githubAPIURL = auth.DefaultGithubAPIURL

// authEnv returns envs required by git to authenticate against push remote.
// nil is returned if auth is not configured so git uses ambient environment
func (r *Repository) authEnv(ctx context.Context) ([]string, error) {
	if (r.conf.Auth == Auth{}) {
		return nil, nil
	}

	rawURL, err := remoteURL(r.dir, r.conf.Remote)
	if err != nil {
		return nil, err
	}

	gitURL, err := giturl.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	if gitURL.IsSSH() {
		if r.conf.Auth.SSHKeyPath == "" {
			return nil, nil
		}
		return []string{r.gitSSHCommand()}, nil
	}

	var username, password string
	switch {
	// if username & password is set use that
	case r.conf.Auth.Username != "" && r.conf.Auth.Password != "":
		username = r.conf.Auth.Username
		password = r.conf.Auth.Password

	// if only password (token) is set use that
	case r.conf.Auth.Password != "":
		username = "-" // username is required
		password = r.conf.Auth.Password

	// if github app config is set use that token
	case r.conf.Auth.GithubAppInstallationID != "" && gitURL.Host == "github.com":
		token, err := r.getGithubAppToken(ctx, gitURL.RepoName())
		if err != nil {
			return nil, fmt.Errorf("unable to get github app token err:%w", err)
		}
		username = "x-access-token"
		password = token

	default:
		return nil, nil
	}

	credsLoader, err := r.ensureCredsLoader()
	if err != nil {
		return nil, fmt.Errorf("unable to write load creds script file err:%w", err)
	}

	return []string{
		fmt.Sprintf(`GIT_ASKPASS=%s`, credsLoader),
		fmt.Sprintf(`REPO_USERNAME=%s`, username),
		fmt.Sprintf(`REPO_PASSWORD=%s`, password),
	}, nil
}

// ensureCredsLoader writes askpass script inside the git dir so it never
// shows up as a change in the worktree
func (r *Repository) ensureCredsLoader() (string, error) {
	credsLoader := filepath.Join(r.dir, ".git", "svn-mirror-creds-loader.sh")

	_, err := os.Stat(credsLoader)
	switch {
	case os.IsNotExist(err):
		if err := os.WriteFile(credsLoader, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("unable to check if script file exits err:%w", err)
	}

	return credsLoader, nil
}

// gitSSHCommand returns the environment variable to be used for configuring
// git over ssh.
func (r *Repository) gitSSHCommand() string {
	knownHostsOptions := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if r.conf.Auth.SSHKnownHostsPath != "" {
		knownHostsOptions = fmt.Sprintf("-o UserKnownHostsFile=%s", r.conf.Auth.SSHKnownHostsPath)
	}
	return fmt.Sprintf(`GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s`, r.conf.Auth.SSHKeyPath, knownHostsOptions)
}

func (r *Repository) getGithubAppToken(ctx context.Context, repo string) (string, error) {
	// return token if current token is valid for next 10 min
	if r.githubAppTokenExpiresAt.After(time.Now().UTC().Add(10 * time.Minute)) {
		return r.githubAppToken, nil
	}

	app := &auth.GithubApp{
		AppID:          r.conf.Auth.GithubAppID,
		InstallationID: r.conf.Auth.GithubAppInstallationID,
		PrivateKeyPath: r.conf.Auth.GithubAppPrivateKeyPath,
		APIURL:         githubAPIURL,
	}

	// github matches repo name without `.git` for permission for token req
	token, err := app.InstallationToken(ctx, auth.GithubAppTokenReqPermissions{
		Repositories: []string{repo},
		Permissions:  map[string]string{"contents": "write"},
	})
	if err != nil {
		return "", err
	}

	r.githubAppToken = token.Token
	r.githubAppTokenExpiresAt = token.ExpiresAt

	r.log.Debug("new github app access token created")

	return r.githubAppToken, nil
}
