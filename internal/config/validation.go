package config

import (
	"fmt"
	"time"
)

// Validate checks structural configuration invariants. Combination legality
// against targets is the feature validator's job, not this one's: here we
// only reject configs that reference things that do not exist.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("config: at least one target is required")
	}

	seenTargets := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("config: target name is required")
		}
		if seenTargets[t.Name] {
			return fmt.Errorf("config: duplicate target %q", t.Name)
		}
		seenTargets[t.Name] = true
		if t.OS == "" || t.Arch == "" {
			return fmt.Errorf("config: target %q needs both os and arch", t.Name)
		}
	}

	seenCategories := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("config: category name is required")
		}
		if seenCategories[cat.Name] {
			return fmt.Errorf("config: duplicate category %q", cat.Name)
		}
		seenCategories[cat.Name] = true
		if cat.Kind != CategoryExclusive && cat.Kind != CategoryAdditive {
			return fmt.Errorf("config: category %q has unknown kind %q", cat.Name, cat.Kind)
		}
	}

	seenFeatures := make(map[string]bool, len(c.Features))
	for _, f := range c.Features {
		if f.Name == "" {
			return fmt.Errorf("config: feature name is required")
		}
		if seenFeatures[f.Name] {
			return fmt.Errorf("config: duplicate feature %q", f.Name)
		}
		seenFeatures[f.Name] = true
		if !seenCategories[f.Category] {
			return fmt.Errorf("config: feature %q references unknown category %q", f.Name, f.Category)
		}
	}
	// Requires lists may only name declared features.
	for _, f := range c.Features {
		for _, req := range f.Requires {
			if !seenFeatures[req] {
				return fmt.Errorf("config: feature %q requires unknown feature %q", f.Name, req)
			}
		}
	}

	for i, combo := range c.Combinations {
		if len(combo) == 0 {
			continue // legality of empty combinations is a validator concern
		}
		for _, name := range combo {
			if !seenFeatures[name] {
				return fmt.Errorf("config: combination %d references unknown feature %q", i, name)
			}
		}
	}

	if c.Build.Policy != PolicyFailFast && c.Build.Policy != PolicyFailContinue {
		return fmt.Errorf("config: build policy must be %q or %q", PolicyFailFast, PolicyFailContinue)
	}
	if c.Build.JobTimeout != "" {
		if _, err := time.ParseDuration(c.Build.JobTimeout); err != nil {
			return fmt.Errorf("config: invalid job_timeout: %w", err)
		}
	}

	if c.Artifacts.Backend == ArtifactBackendS3 {
		if c.Artifacts.S3.Endpoint == "" || c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("config: s3 artifact backend needs endpoint and bucket")
		}
	}

	if c.Publish != nil {
		if c.Publish.Tag == "" {
			return fmt.Errorf("config: publish tag is required")
		}
		if c.Publish.Registry.URL == "" {
			return fmt.Errorf("config: publish registry url is required")
		}
		if c.Publish.Cache.Backend == CacheBackendNATS && c.Publish.Cache.NATS.URL == "" {
			return fmt.Errorf("config: nats cache backend needs a url")
		}
	}

	if c.Daemon.Schedule != "" {
		if _, err := time.ParseDuration(c.Daemon.Schedule); err != nil {
			return fmt.Errorf("config: invalid daemon schedule: %w", err)
		}
	}

	return nil
}
