package repository

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// remoteURL reads url of the given remote from the repository's git config
func remoteURL(dir, remote string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("unable to open repository err:%w", err)
	}

	rem, err := repo.Remote(remote)
	if err != nil {
		return "", fmt.Errorf("unable to get remote '%s' err:%w", remote, err)
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote '%s' has no url", remote)
	}
	return urls[0], nil
}

// headHash returns hash of the local branch head
func headHash(dir, branch string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return "", err
	}
	return ref.Hash().String(), nil
}
