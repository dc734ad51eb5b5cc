package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration and
// fills the parsed list fields. Load calls it automatically; callers that
// change *Raw fields afterwards must call it again.
func (c *Config) Validate() error {
	c.Corpus.SaveNamespaces = ParseList(c.Corpus.SaveNamespacesRaw)
	if c.Corpus.IndexPath == "" {
		return fmt.Errorf("corpus.index_path is required")
	}
	if c.Corpus.IndexBatchSize <= 0 {
		return fmt.Errorf("corpus.index_batch_size must be > 0 (got %d)", c.Corpus.IndexBatchSize)
	}

	if err := c.Pipeline.validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	c.Kafka.Brokers = ParseList(c.Kafka.BrokersRaw)
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when brokers are set")
	}

	if c.Database.DSN != "" && c.Database.BatchSize <= 0 {
		return fmt.Errorf("database.batch_size must be > 0 (got %d)", c.Database.BatchSize)
	}

	return nil
}

func (p *PipelineConfig) validate() error {
	if p.Workers < 0 {
		return fmt.Errorf("workers must be >= 0 (got %d)", p.Workers)
	}
	if p.Workers == 0 {
		p.Workers = runtime.NumCPU()
	}
	if p.SlowPageThreshold < 0 {
		return fmt.Errorf("slow_page_threshold must be >= 0 (got %v)", p.SlowPageThreshold)
	}
	if p.MaxFailureRatio < 0 || p.MaxFailureRatio > 1 {
		return fmt.Errorf("max_failure_ratio must be within [0, 1] (got %v)", p.MaxFailureRatio)
	}
	if p.MinPagesForFailureRatio < 0 {
		return fmt.Errorf("min_pages_for_failure_ratio must be >= 0 (got %d)", p.MinPagesForFailureRatio)
	}
	if p.MessageCap < 0 {
		return fmt.Errorf("message_cap must be >= 0 (got %d)", p.MessageCap)
	}
	if p.ExtractThesaurus && p.ThesaurusNamespace == "" {
		return fmt.Errorf("thesaurus_namespace is required when extract_thesaurus is enabled")
	}

	p.NamespaceDenylist = ParseList(p.NamespaceDenylistRaw)
	p.SuffixDenylist = ParseList(p.SuffixDenylistRaw)
	p.ExtractNamespaces = ParseList(p.ExtractNamespacesRaw)
	p.LanguageCodes = ParseList(p.LanguageCodesRaw)

	if len(p.ExtractNamespaces) == 0 {
		return fmt.Errorf("extract_namespaces must list at least one namespace")
	}

	return nil
}

// ParseList splits a comma-separated string into trimmed, non-empty items.
// An empty string returns a nil slice.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items = append(items, p)
	}
	return items
}
