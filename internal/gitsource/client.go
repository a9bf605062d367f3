// Package gitsource checks out the source repository whose binary the
// matrix builds. The resolved HEAD commit feeds cache keys and publish
// idempotence checks.
package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	appcfg "git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
)

// Client performs source checkouts.
type Client struct {
	shallowDepth int
}

// NewClient creates a git client. A positive depth enables shallow clones;
// matrix builds only need the tip of the configured branch.
func NewClient(shallowDepth int) *Client { return &Client{shallowDepth: shallowDepth} }

// Checkout clones the configured source into destDir and returns the
// resolved HEAD commit hash. destDir is removed first so a checkout is
// always from a clean slate.
func (c *Client) Checkout(ctx context.Context, src appcfg.SourceConfig, destDir string) (string, error) {
	if err := os.RemoveAll(destDir); err != nil {
		return "", fmt.Errorf("failed to clean checkout directory: %w", err)
	}

	opts := &git.CloneOptions{URL: src.URL}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}
	if c.shallowDepth > 0 {
		opts.Depth = c.shallowDepth
	}
	if !src.Auth.IsZero() {
		auth, err := authMethod(src.Auth)
		if err != nil {
			return "", fmt.Errorf("failed to setup authentication: %w", err)
		}
		opts.Auth = auth
	}

	slog.Debug("Checking out source", logfields.URL(src.URL), slog.String("branch", src.Branch), logfields.Path(destDir))

	repo, err := git.PlainCloneContext(ctx, destDir, false, opts)
	if err != nil {
		return "", fmt.Errorf("failed to clone source %s: %w", src.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit := head.Hash().String()
	slog.Info("Source checked out", logfields.URL(src.URL), slog.String("commit", commit[:8]), logfields.Path(destDir))
	return commit, nil
}

// HeadCommit resolves the HEAD commit of an existing checkout.
func HeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// authMethod maps config auth onto a go-git transport auth method.
func authMethod(cfg *appcfg.AuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case appcfg.AuthTypeToken:
		// Forge HTTP token auth: any non-empty username works.
		return &githttp.BasicAuth{Username: "token", Password: cfg.Token}, nil
	case appcfg.AuthTypeBasic:
		return &githttp.BasicAuth{Username: cfg.Username, Password: cfg.Password}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.Type)
	}
}
