package registry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

// fakeDistribution implements just enough of the OCI distribution API for
// the client tests.
type fakeDistribution struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	manifests map[string][]byte // reference (digest or tag) -> body
	digests   map[string]string // tag -> digest
	token     string
}

func newFakeDistribution(token string) *fakeDistribution {
	return &fakeDistribution{
		blobs:     make(map[string][]byte),
		manifests: make(map[string][]byte),
		digests:   make(map[string]string),
		token:     token,
	}
}

func (f *fakeDistribution) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		if f.token != "" && r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/v2/")
		switch {
		case path == "":
			w.WriteHeader(http.StatusOK)

		case strings.Contains(path, "/blobs/uploads"):
			w.Header().Set("Location", "/v2/test/proxy/blobs/upload-1")
			w.WriteHeader(http.StatusAccepted)

		case strings.Contains(path, "/blobs/upload-1"):
			body, _ := io.ReadAll(r.Body)
			f.blobs[r.URL.Query().Get("digest")] = body
			w.WriteHeader(http.StatusCreated)

		case strings.Contains(path, "/blobs/"):
			digest := path[strings.LastIndex(path, "/")+1:]
			if _, ok := f.blobs[digest]; ok {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}

		case strings.Contains(path, "/manifests/"):
			ref := path[strings.LastIndex(path, "/")+1:]
			switch r.Method {
			case http.MethodPut:
				body, _ := io.ReadAll(r.Body)
				f.manifests[ref] = body
				if !strings.HasPrefix(ref, "sha256:") {
					f.digests[ref] = "sha256:resolved"
				}
				w.WriteHeader(http.StatusCreated)
			case http.MethodHead, http.MethodGet:
				if digest, ok := f.digests[ref]; ok {
					w.Header().Set("Docker-Content-Digest", digest)
					w.WriteHeader(http.StatusOK)
				} else if _, ok := f.manifests[ref]; ok {
					w.Header().Set("Docker-Content-Digest", ref)
					w.WriteHeader(http.StatusOK)
				} else {
					w.WriteHeader(http.StatusNotFound)
				}
			}

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return mux
}

func TestHTTPClientAuthenticate(t *testing.T) {
	fake := newFakeDistribution("secret")
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "test/proxy")
	ctx := context.Background()

	err := client.Authenticate(ctx, &config.AuthConfig{Type: config.AuthTypeToken, Token: "wrong"})
	require.Error(t, err)

	err = client.Authenticate(ctx, &config.AuthConfig{Type: config.AuthTypeToken, Token: "secret"})
	require.NoError(t, err)
}

func TestHTTPClientLayerRoundTrip(t *testing.T) {
	fake := newFakeDistribution("")
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "test/proxy")
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx, nil))

	has, err := client.HasLayer(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, client.PushLayer(ctx, "sha256:abc", []byte("blob")))

	has, err = client.HasLayer(ctx, "sha256:abc")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHTTPClientManifestAndTag(t *testing.T) {
	fake := newFakeDistribution("")
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "test/proxy")
	ctx := context.Background()
	require.NoError(t, client.Authenticate(ctx, nil))

	manifest := Manifest{
		MediaType: "application/vnd.oci.image.index.v1+json",
		Digest:    "sha256:list",
		Data:      []byte(`{"mediaType":"application/vnd.oci.image.index.v1+json","manifests":[]}`),
	}
	require.NoError(t, client.PutManifest(ctx, manifest))

	// Updating a tag for an unknown digest is refused client-side.
	require.Error(t, client.UpdateTag(ctx, "registry.example.com/test/proxy:latest", "sha256:unknown"))

	require.NoError(t, client.UpdateTag(ctx, "registry.example.com/test/proxy:latest", "sha256:list"))

	digest, ok, err := client.ResolveTag(ctx, "registry.example.com/test/proxy:latest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, digest)
}

func TestTagReference(t *testing.T) {
	assert.Equal(t, "latest", tagReference("registry.example.com/test/proxy:latest"))
	assert.Equal(t, "v1.2", tagReference("proxy:v1.2"))
	assert.Equal(t, "plain", tagReference("plain"))
}
