package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArchImage is the built layer set for one architecture.
type ArchImage struct {
	Arch        string
	LayerDigest string
	LayerBlob   []byte
}

// ImageBuilder produces per-architecture image layers from a build context.
//
// LayerDigest must be derivable from the inputs alone, without running the
// build, so the publisher can consult the content-addressed cache first.
// BuildLayer must produce a blob whose digest equals LayerDigest for the
// same inputs.
type ImageBuilder interface {
	LayerDigest(contextDir, recipe, arch string) (string, error)
	BuildLayer(ctx context.Context, contextDir, recipe, arch string, emulated bool) ([]byte, error)
}

// ContentBuilder derives layers purely from the context content. The layer
// blob is a deterministic archive of every file in the context plus the
// recipe path and architecture, so an unchanged context always produces the
// same digest regardless of host, cache temperature or build order.
type ContentBuilder struct{}

func (b *ContentBuilder) LayerDigest(contextDir, recipe, arch string) (string, error) {
	blob, err := b.archive(contextDir, recipe, arch)
	if err != nil {
		return "", err
	}
	return digestOf(blob), nil
}

func (b *ContentBuilder) BuildLayer(ctx context.Context, contextDir, recipe, arch string, _ bool) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return b.archive(contextDir, recipe, arch)
}

// archive walks the context in lexical order and concatenates each file's
// relative path and content, framed with lengths to avoid ambiguity.
func (b *ContentBuilder) archive(contextDir, recipe, arch string) ([]byte, error) {
	var out []byte
	out = append(out, []byte(fmt.Sprintf("recipe=%s\narch=%s\n", recipe, arch))...)

	err := filepath.WalkDir(contextDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(contextDir, path)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return err
		}

		out = append(out, []byte(fmt.Sprintf("%d:%s\n%d:", len(rel), filepath.ToSlash(rel), len(content)))...)
		out = append(out, content...)
		out = append(out, '\n')
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive build context: %w", err)
	}
	return out, nil
}

// digestOf returns the sha256 digest of data in registry notation.
func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
