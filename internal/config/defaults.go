package config

// applyDefaults fills zero values with sensible defaults after unmarshal.
func applyDefaults(c *Config) {
	if c.Source.Branch == "" {
		c.Source.Branch = "main"
	}
	if c.Source.Tool == "" {
		c.Source.Tool = "cargo"
	}

	for i := range c.Targets {
		if c.Targets[i].Toolchain == "" {
			c.Targets[i].Toolchain = "stable"
		}
	}

	for i := range c.Categories {
		if c.Categories[i].Kind == "" {
			c.Categories[i].Kind = CategoryExclusive
		}
	}

	if c.Build.Concurrency <= 0 {
		c.Build.Concurrency = 2
	}
	if c.Build.Policy == "" {
		c.Build.Policy = PolicyFailContinue
	}

	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = ArtifactBackendLocal
	}
	if c.Artifacts.Backend == ArtifactBackendLocal && c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "./artifacts"
	}

	if c.Publish != nil {
		if c.Publish.Context == "" {
			c.Publish.Context = "."
		}
		if c.Publish.Recipe == "" {
			c.Publish.Recipe = "Dockerfile"
		}
		if len(c.Publish.Architectures) == 0 {
			c.Publish.Architectures = []string{"amd64", "arm64"}
		}
		if c.Publish.Cache.Backend == "" {
			c.Publish.Cache.Backend = CacheBackendNone
		}
		if c.Publish.Cache.Backend == CacheBackendNATS && c.Publish.Cache.NATS.Bucket == "" {
			c.Publish.Cache.NATS.Bucket = "buildmatrix-layers"
		}
	}

	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8383"
	}
	if c.Daemon.EventsDB == "" {
		c.Daemon.EventsDB = "buildmatrix-events.db"
	}
}
