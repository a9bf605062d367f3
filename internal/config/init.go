package config

import (
	"fmt"
	"os"
)

// exampleConfig mirrors a realistic static-build matrix for a network proxy:
// one mandatory crypto backend per variant, an optional DNS resolver backend,
// and an additive QUIC transport toggle.
const exampleConfig = `# buildmatrix configuration
source:
  url: https://github.com/example/proxy.git
  branch: main
  tool: cargo
  binary: target/release/proxy

targets:
  - name: linux-amd64
    os: linux
    arch: amd64
  - name: windows-amd64
    os: windows
    arch: amd64

categories:
  - name: crypto
    kind: exclusive
    mandatory: true
  - name: dns
    kind: exclusive
  - name: transport
    kind: additive

features:
  - name: openssl
    category: crypto
  - name: tongsuo
    category: crypto
    platforms: [linux]
  - name: boringssl
    category: crypto
    platforms: [linux]
  - name: aws-lc
    category: crypto
  - name: c-ares
    category: dns
  - name: hickory
    category: dns
  - name: quic
    category: transport
  - name: h3
    category: transport
    requires: [quic]

combinations:
  - [openssl, c-ares, quic]
  - [openssl, hickory, quic, h3]
  - [tongsuo, c-ares]
  - [boringssl, quic]
  - [aws-lc, hickory, quic]

build:
  concurrency: 4
  policy: fail-continue
  # job_timeout: 45m

artifacts:
  backend: local
  dir: ./artifacts

publish:
  context: .
  recipe: Dockerfile
  tag: registry.example.com/proxy:latest
  architectures: [amd64, arm64]
  registry:
    url: https://registry.example.com
    auth:
      type: token
      token: ${REGISTRY_TOKEN}
  cache:
    backend: nats
    nats:
      url: nats://127.0.0.1:4222
      bucket: buildmatrix-layers

daemon:
  listen: ":8383"
  schedule: 6h
  watch_config: true
  events_db: buildmatrix-events.db
  metrics: true
`

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
