// Package giturl parses push remote urls to decide how git should
// authenticate against the remote host
package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// The repository name can contain
	// ASCII letters, digits, and the characters ., -, and _.

	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://[user@]host.xz[:port]/path/to/repo.git
	httpsURLRgx = regexp.MustCompile(`^https://((?P<user>[\w\-\.]+)@)?(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)
)

// Scheme of the remote URL
type Scheme string

const (
	SchemeSCP   Scheme = "scp"
	SchemeSSH   Scheme = "ssh"
	SchemeHTTPS Scheme = "https"
)

// URL represents parsed git url
type URL struct {
	Scheme Scheme
	User   string // might be empty for https urls
	Host   string // host or host:port
	Path   string // path to the repo (org)
	Repo   string // repository name from the path includes .git
}

// Parse parses a raw push url into a URL structure.
// valid git urls are...
//   - user@host.xz:path/to/repo.git
//   - ssh://user@host.xz[:port]/path/to/repo.git
//   - https://[user@]host.xz[:port]/path/to/repo.git
func Parse(rawURL string) (*URL, error) {
	rawURL = strings.TrimRight(strings.TrimSpace(rawURL), "/")

	var rgx *regexp.Regexp
	gURL := &URL{}

	switch {
	case scpURLRgx.MatchString(rawURL):
		rgx, gURL.Scheme = scpURLRgx, SchemeSCP
	case sshURLRgx.MatchString(rawURL):
		rgx, gURL.Scheme = sshURLRgx, SchemeSSH
	case httpsURLRgx.MatchString(rawURL):
		rgx, gURL.Scheme = httpsURLRgx, SchemeHTTPS
	default:
		return nil, fmt.Errorf(
			"provided '%s' remote url is invalid, supported urls are 'user@host.xz:path/to/repo.git','ssh://user@host.xz/path/to/repo.git' or 'https://host.xz/path/to/repo.git'",
			rawURL)
	}

	sections := rgx.FindStringSubmatch(rawURL)
	if i := rgx.SubexpIndex("user"); i >= 0 {
		gURL.User = sections[i]
	}
	gURL.Host = strings.ToLower(sections[rgx.SubexpIndex("host")])
	// scp path doesn't have leading "/"
	// also removing training "/" for consistency
	gURL.Path = strings.Trim(sections[rgx.SubexpIndex("path")], "/")
	gURL.Repo = sections[rgx.SubexpIndex("repo")]

	if gURL.Path == "" {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if gURL.Repo == "" || gURL.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return gURL, nil
}

// IsSSH returns true if git will reach the remote over ssh
func (u *URL) IsSSH() bool {
	return u.Scheme == SchemeSCP || u.Scheme == SchemeSSH
}

// RepoName returns repository name without .git suffix
func (u *URL) RepoName() string {
	return strings.TrimSuffix(u.Repo, ".git")
}
