package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
)

// HTTPClient talks the OCI distribution API to a real registry. One client
// serves one repository.
type HTTPClient struct {
	base string // https://registry.example.com
	repo string // library/proxy
	http *http.Client

	mu        sync.RWMutex
	auth      *config.AuthConfig
	manifests map[string][]byte // digest -> body, for tag re-put
}

// NewHTTPClient creates a client for registryURL (scheme + host) and a
// repository path.
func NewHTTPClient(registryURL, repo string) *HTTPClient {
	return &HTTPClient{
		base:      strings.TrimRight(registryURL, "/"),
		repo:      strings.Trim(repo, "/"),
		http:      &http.Client{Timeout: 2 * time.Minute},
		manifests: make(map[string][]byte),
	}
}

func (c *HTTPClient) Authenticate(ctx context.Context, auth *config.AuthConfig) error {
	c.mu.Lock()
	c.auth = auth
	c.mu.Unlock()

	// The /v2/ ping validates credentials up front so a rejection aborts
	// the publish before any build work.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v2/", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryAuth, "registry unreachable").Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.AuthError("registry rejected credentials").
			WithContext("status", resp.StatusCode).
			Build()
	}
	if resp.StatusCode >= 400 {
		return errors.PublishError("registry ping failed").
			WithContext("status", resp.StatusCode).
			Build()
	}
	return nil
}

func (c *HTTPClient) HasLayer(ctx context.Context, digest string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead,
		fmt.Sprintf("%s/v2/%s/blobs/%s", c.base, c.repo, digest), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// PushLayer uploads a blob with the monolithic single-request flow.
func (c *HTTPClient) PushLayer(ctx context.Context, digest string, blob []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v2/%s/blobs/uploads/", c.base, c.repo), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	location := resp.Header.Get("Location")
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || location == "" {
		return errors.PublishError("blob upload initiation failed").
			WithContext("status", resp.StatusCode).
			Build()
	}

	sep := "?"
	if strings.Contains(location, "?") {
		sep = "&"
	}
	if strings.HasPrefix(location, "/") {
		location = c.base + location
	}
	put, err := http.NewRequestWithContext(ctx, http.MethodPut,
		location+sep+"digest="+digest, bytes.NewReader(blob))
	if err != nil {
		return err
	}
	put.Header.Set("Content-Type", "application/octet-stream")
	put.ContentLength = int64(len(blob))

	resp, err = c.do(put)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return errors.PublishError("blob upload failed").
			WithContext("digest", digest).
			WithContext("status", resp.StatusCode).
			Build()
	}
	return nil
}

func (c *HTTPClient) PutManifest(ctx context.Context, manifest Manifest) error {
	if err := c.putManifestRef(ctx, manifest.Digest, manifest.MediaType, manifest.Data); err != nil {
		return err
	}
	c.mu.Lock()
	c.manifests[manifest.Digest] = manifest.Data
	c.mu.Unlock()
	return nil
}

// UpdateTag re-puts the manifest body under the tag reference, which is how
// the distribution API models tag updates. The registry swaps the tag
// atomically.
func (c *HTTPClient) UpdateTag(ctx context.Context, tag, digest string) error {
	c.mu.RLock()
	data, ok := c.manifests[digest]
	c.mu.RUnlock()
	if !ok {
		return errors.ManifestError("tag update references unknown manifest").
			WithContext("digest", digest).
			Build()
	}
	ref := tagReference(tag)
	return c.putManifestRef(ctx, ref, mediaTypeFromBody(data), data)
}

func (c *HTTPClient) ResolveTag(ctx context.Context, tag string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead,
		fmt.Sprintf("%s/v2/%s/manifests/%s", c.base, c.repo, tagReference(tag)), nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Accept", "application/vnd.oci.image.index.v1+json")
	resp, err := c.do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, errors.PublishError("tag resolution failed").
			WithContext("tag", tag).
			WithContext("status", resp.StatusCode).
			Build()
	}
	return resp.Header.Get("Docker-Content-Digest"), true, nil
}

func (c *HTTPClient) putManifestRef(ctx context.Context, ref, mediaType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/v2/%s/manifests/%s", c.base, c.repo, ref), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return errors.ManifestError("manifest push failed").
			WithContext("reference", ref).
			WithContext("status", resp.StatusCode).
			Build()
	}
	return nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	auth := c.auth
	c.mu.RUnlock()

	if !auth.IsZero() {
		switch auth.Type {
		case config.AuthTypeToken:
			req.Header.Set("Authorization", "Bearer "+auth.Token)
		case config.AuthTypeBasic:
			req.SetBasicAuth(auth.Username, auth.Password)
		}
	}
	return c.http.Do(req)
}

// tagReference strips a registry/repo prefix from a fully-qualified tag,
// leaving the bare tag name the manifest endpoint expects.
func tagReference(tag string) string {
	if idx := strings.LastIndex(tag, ":"); idx > strings.LastIndex(tag, "/") {
		return tag[idx+1:]
	}
	return tag
}

func mediaTypeFromBody(data []byte) string {
	if bytes.Contains(data, []byte("image.index")) {
		return "application/vnd.oci.image.index.v1+json"
	}
	return "application/vnd.oci.image.manifest.v1+json"
}
