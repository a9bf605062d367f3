package layercache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

const (
	defaultBucket   = "buildmatrix-layers"
	bucketMaxBytes  = 1024 * 1024 * 1024 // 1GB
	operationWindow = 5 * time.Second
)

// NATSCache is a Cache backed by a JetStream KV bucket, shared across
// builder instances.
type NATSCache struct {
	conn   *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

// NewNATSCache connects to NATS and opens (or creates) the KV bucket.
func NewNATSCache(cfg config.NATSConfig) (*NATSCache, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cache := &NATSCache{conn: conn, bucket: bucket}
	if err := cache.initBucket(js); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize KV bucket: %w", err)
	}

	slog.Info("Layer cache connected", "url", url, "bucket", bucket)
	return cache, nil
}

func (c *NATSCache) initBucket(js jetstream.JetStream) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.KeyValue(ctx, c.bucket)
	if err == nil {
		c.kv = kv
		return nil
	}

	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      c.bucket,
		Description: "Content-addressed image layer cache",
		MaxBytes:    bucketMaxBytes,
		History:     1,
	})
	if err != nil {
		return fmt.Errorf("failed to create KV bucket: %w", err)
	}

	c.kv = kv
	slog.Info("Created layer cache bucket", "bucket", c.bucket)
	return nil
}

func (c *NATSCache) Get(ctx context.Context, digest string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, operationWindow)
	defer cancel()

	entry, err := c.kv.Get(ctx, keyFor(digest))
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry.Value(), true, nil
}

func (c *NATSCache) Put(ctx context.Context, digest string, blob []byte) error {
	ctx, cancel := context.WithTimeout(ctx, operationWindow)
	defer cancel()

	if _, err := c.kv.Put(ctx, keyFor(digest), blob); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (c *NATSCache) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// keyFor maps a digest like "sha256:abc..." to a KV-safe key. NATS KV keys
// cannot contain ':'.
func keyFor(digest string) string {
	out := make([]byte, len(digest))
	for i := 0; i < len(digest); i++ {
		if digest[i] == ':' {
			out[i] = '.'
		} else {
			out[i] = digest[i]
		}
	}
	return string(out)
}
