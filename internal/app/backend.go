package app

import (
	"context"
	"net/http"

	"bloghub/api/internal/githost"
	"bloghub/api/internal/gitstore"
	"bloghub/api/internal/localgit"
)

// Backend builds store clients for the content repository. The hosted
// backend makes a fresh client per credential; the local backend shares
// one repository for development.
type Backend interface {
	// Open validates a credential and returns the viewer it authenticates
	// along with a store bound to that credential.
	Open(ctx context.Context, credential string) (gitstore.Store, gitstore.Viewer, error)
	// Reopen rebuilds a store for an already-validated credential without
	// touching the network.
	Reopen(credential string) gitstore.Store
}

// HostBackend talks to a hosted git provider.
type HostBackend struct {
	BaseURL string
	Repo    gitstore.RepoRef
	HTTP    *http.Client
}

func (b *HostBackend) Open(ctx context.Context, credential string) (gitstore.Store, gitstore.Viewer, error) {
	client := githost.New(b.BaseURL, b.Repo, credential, b.HTTP)
	if err := client.ValidateRepoAccess(ctx); err != nil {
		return nil, gitstore.Viewer{}, err
	}
	viewer, err := client.Viewer(ctx)
	if err != nil {
		return nil, gitstore.Viewer{}, err
	}
	return client, viewer, nil
}

func (b *HostBackend) Reopen(credential string) gitstore.Store {
	return githost.New(b.BaseURL, b.Repo, credential, b.HTTP)
}

// LocalBackend serves a repository on local disk. Any credential opens it;
// there is no remote to authenticate against.
type LocalBackend struct {
	Service *localgit.Service
}

var localViewer = gitstore.Viewer{Login: "admin", Name: "Local Admin"}

func (b *LocalBackend) Open(ctx context.Context, credential string) (gitstore.Store, gitstore.Viewer, error) {
	return b.Service, localViewer, nil
}

func (b *LocalBackend) Reopen(credential string) gitstore.Store {
	return b.Service
}
