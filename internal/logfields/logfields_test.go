package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name string
		attr slog.Attr
		key  string
		val  string
	}{
		{"RunID", RunID("r1"), KeyRunID, "r1"},
		{"JobID", JobID("j1"), KeyJobID, "j1"},
		{"Target", Target("linux-amd64"), KeyTarget, "linux-amd64"},
		{"Combination", Combination("openssl+quic"), KeyCombination, "openssl+quic"},
		{"Stage", Stage("compile"), KeyStage, "compile"},
		{"Policy", Policy("fail-fast"), KeyPolicy, "fail-fast"},
		{"Tag", Tag("latest"), KeyTag, "latest"},
		{"Digest", Digest("sha256:abc"), KeyDigest, "sha256:abc"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.attr.Key != c.key {
				t.Errorf("key = %q, want %q", c.attr.Key, c.key)
			}
			if c.attr.Value.String() != c.val {
				t.Errorf("value = %q, want %q", c.attr.Value.String(), c.val)
			}
		})
	}
}

func TestErrorAttr(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Errorf("Error(nil) = %q, want empty", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Errorf("Error(err) = %q, want boom", a.Value.String())
	}
}
