// Package publish builds one logical container image for multiple CPU
// architectures and pushes it under a fixed tag, atomically from the
// consumer's point of view.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
	"git.home.luguber.info/inful/buildmatrix/internal/errors"
	"git.home.luguber.info/inful/buildmatrix/internal/layercache"
	"git.home.luguber.info/inful/buildmatrix/internal/logfields"
	"git.home.luguber.info/inful/buildmatrix/internal/metrics"
	"git.home.luguber.info/inful/buildmatrix/internal/registry"
)

// State is the publisher's position in its lifecycle.
type State string

const (
	StateIdle                     State = "Idle"
	StateContextPrepared          State = "ContextPrepared"
	StateMultiArchBuildInProgress State = "MultiArchBuildInProgress"
	StatePublished                State = "Published"
	StateFailed                   State = "Failed"
)

// Request describes one multi-arch image publish. Consumed exactly once.
type Request struct {
	// ContextDir is the resolved build context directory.
	ContextDir string

	// Recipe is the build recipe path, relative to ContextDir.
	Recipe string

	// Tag is the fully-qualified destination tag.
	Tag string

	// Architectures lists the CPU architectures to build for.
	Architectures []string

	// Auth holds registry credentials from the external provider.
	Auth *config.AuthConfig
}

// Result is the outcome of a publish.
type Result struct {
	State         State         `json:"state"`
	Tag           string        `json:"tag"`
	Digest        string        `json:"digest,omitempty"` // manifest list digest when Published
	Architectures []string      `json:"architectures"`
	FailedStage   string        `json:"failed_stage,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Publisher drives the state machine
// Idle -> ContextPrepared -> MultiArchBuildInProgress -> {Published | Failed}.
// The destination tag is updated only after every architecture's layer set
// and manifest have been pushed, so a consumer never observes a partial
// multi-arch image.
type Publisher struct {
	client   registry.Client
	builder  ImageBuilder
	cache    layercache.Cache // nil disables caching
	recorder metrics.Recorder
	hostArch string
}

// New creates a publisher. cache may be nil.
func New(client registry.Client, builder ImageBuilder, cache layercache.Cache) *Publisher {
	if builder == nil {
		builder = &ContentBuilder{}
	}
	return &Publisher{
		client:   client,
		builder:  builder,
		cache:    cache,
		recorder: metrics.NoopRecorder{},
		hostArch: runtime.GOARCH,
	}
}

// SetRecorder injects a metrics recorder (optional).
func (p *Publisher) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	p.recorder = r
}

// Publish runs one request through the state machine. The returned error is
// non-nil exactly when Result.State is Failed; no tag is created or updated
// on any failure path. Layers pushed before the failure stay in the registry
// and the remote cache for reuse by the next run.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	result := Result{State: StateIdle, Tag: req.Tag, Architectures: req.Architectures}

	fail := func(stage string, err error) (Result, error) {
		result.State = StateFailed
		result.FailedStage = stage
		result.Duration = time.Since(start)
		p.recorder.ObservePublishDuration(result.Duration, false)
		slog.Error("Publish failed",
			logfields.Tag(req.Tag),
			logfields.Stage(stage),
			logfields.Error(err))
		return result, err
	}

	if err := p.prepareContext(req); err != nil {
		return fail("prepare-context", err)
	}
	result.State = StateContextPrepared
	slog.Info("Build context prepared", logfields.Tag(req.Tag), logfields.Path(req.ContextDir))

	// Rejected credentials abort the publish before any build work.
	if err := p.client.Authenticate(ctx, req.Auth); err != nil {
		return fail("authenticate", errors.Wrap(err, errors.CategoryAuth, "registry authentication rejected").Fatal().Build())
	}

	result.State = StateMultiArchBuildInProgress
	images := make([]ArchImage, 0, len(req.Architectures))
	for _, arch := range req.Architectures {
		img, err := p.buildArch(ctx, req, arch)
		if err != nil {
			return fail("build-"+arch, err)
		}
		images = append(images, img)
	}

	listDigest, err := p.pushManifests(ctx, req, images)
	if err != nil {
		return fail("manifest", err)
	}

	// Tag update is the single externally-visible commit point.
	if err := p.client.UpdateTag(ctx, req.Tag, listDigest); err != nil {
		return fail("tag-update", errors.Wrap(err, errors.CategoryManifest, "tag update failed").Fatal().Build())
	}

	result.State = StatePublished
	result.Digest = listDigest
	result.Duration = time.Since(start)
	p.recorder.ObservePublishDuration(result.Duration, true)
	slog.Info("Image published",
		logfields.Tag(req.Tag),
		logfields.Digest(listDigest),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

// prepareContext validates that the context directory and recipe exist.
func (p *Publisher) prepareContext(req Request) error {
	if len(req.Architectures) == 0 {
		return errors.PublishError("no architectures requested").Build()
	}
	info, err := os.Stat(req.ContextDir)
	if err != nil || !info.IsDir() {
		return errors.PublishError("build context directory not found").
			WithContext("path", req.ContextDir).
			Build()
	}
	recipe := filepath.Join(req.ContextDir, req.Recipe)
	if _, err := os.Stat(recipe); err != nil {
		return errors.PublishError("build recipe not found").
			WithContext("path", recipe).
			Build()
	}
	return nil
}

// buildArch produces the layer set for one architecture, consulting the
// content-addressed cache first. A cache failure degrades to a full build.
func (p *Publisher) buildArch(ctx context.Context, req Request, arch string) (ArchImage, error) {
	emulated := arch != p.hostArch
	slog.Info("Building architecture",
		logfields.Tag(req.Tag),
		logfields.Arch(arch),
		slog.Bool("emulated", emulated))

	digest, err := p.builder.LayerDigest(req.ContextDir, req.Recipe, arch)
	if err != nil {
		return ArchImage{}, errors.Wrap(err, errors.CategoryPublish, "layer digest computation failed").
			WithContext("arch", arch).
			Build()
	}

	blob, hit := p.cacheLookup(ctx, digest)
	p.recorder.IncCacheEvent(hit)
	if !hit {
		blob, err = p.builder.BuildLayer(ctx, req.ContextDir, req.Recipe, arch, emulated)
		if err != nil {
			return ArchImage{}, errors.Wrap(err, errors.CategoryPublish, "architecture build failed").
				WithContext("arch", arch).
				Build()
		}
		p.cacheStore(ctx, digest, blob)
	}

	return ArchImage{Arch: arch, LayerDigest: digest, LayerBlob: blob}, nil
}

func (p *Publisher) cacheLookup(ctx context.Context, digest string) ([]byte, bool) {
	if p.cache == nil {
		return nil, false
	}
	blob, ok, err := p.cache.Get(ctx, digest)
	if err != nil {
		slog.Warn("Layer cache lookup failed, rebuilding", logfields.Digest(digest), logfields.Error(err))
		return nil, false
	}
	return blob, ok
}

func (p *Publisher) cacheStore(ctx context.Context, digest string, blob []byte) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Put(ctx, digest, blob); err != nil {
		slog.Warn("Layer cache store failed", logfields.Digest(digest), logfields.Error(err))
	}
}

// pushManifests uploads every layer and per-arch manifest, then the manifest
// list, returning the list digest. Nothing here touches the tag.
func (p *Publisher) pushManifests(ctx context.Context, req Request, images []ArchImage) (string, error) {
	entries := make([]manifestEntry, 0, len(images))
	for _, img := range images {
		has, err := p.client.HasLayer(ctx, img.LayerDigest)
		if err != nil {
			return "", errors.Wrap(err, errors.CategoryPublish, "layer existence check failed").Build()
		}
		if !has {
			if err := p.client.PushLayer(ctx, img.LayerDigest, img.LayerBlob); err != nil {
				return "", errors.Wrap(err, errors.CategoryPublish, "layer push failed").
					WithContext("arch", img.Arch).
					Build()
			}
		}

		manifest := archManifest(img)
		if err := p.client.PutManifest(ctx, manifest); err != nil {
			return "", errors.Wrap(err, errors.CategoryManifest, "per-architecture manifest push failed").
				WithContext("arch", img.Arch).
				Build()
		}
		entries = append(entries, manifestEntry{Arch: img.Arch, Digest: manifest.Digest})
	}

	list := manifestList(entries)
	if err := p.client.PutManifest(ctx, list); err != nil {
		return "", errors.Wrap(err, errors.CategoryManifest, "manifest list push failed").Build()
	}
	return list.Digest, nil
}

type manifestEntry struct {
	Arch   string `json:"arch"`
	Digest string `json:"digest"`
}

// archManifest builds the single-architecture manifest. The digest depends
// only on the arch and its layer digests, so identical inputs yield an
// identical manifest run over run.
func archManifest(img ArchImage) registry.Manifest {
	data := fmt.Sprintf(`{"mediaType":%q,"arch":%q,"layers":[%q]}`,
		mediaTypeManifest, img.Arch, img.LayerDigest)
	return registry.Manifest{
		MediaType: mediaTypeManifest,
		Digest:    digestOf([]byte(data)),
		Data:      []byte(data),
		Layers:    []string{img.LayerDigest},
	}
}

// manifestList assembles the multi-arch manifest list over sorted entries so
// the list digest is independent of build order.
func manifestList(entries []manifestEntry) registry.Manifest {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Arch < entries[j].Arch })

	data := `{"mediaType":"` + mediaTypeList + `","manifests":[`
	for i, e := range entries {
		if i > 0 {
			data += ","
		}
		data += fmt.Sprintf(`{"arch":%q,"digest":%q}`, e.Arch, e.Digest)
	}
	data += "]}"

	return registry.Manifest{
		MediaType: mediaTypeList,
		Digest:    digestOf([]byte(data)),
		Data:      []byte(data),
	}
}

const (
	mediaTypeManifest = "application/vnd.oci.image.manifest.v1+json"
	mediaTypeList     = "application/vnd.oci.image.index.v1+json"
)
