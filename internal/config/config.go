package config

import "time"

// Config is the root application configuration.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// CorpusConfig locates the source dump and the durable page index.
type CorpusConfig struct {
	DumpPath   string `yaml:"dump_path"   env:"CORPUS_DUMP_PATH"`
	IndexPath  string `yaml:"index_path"  env:"CORPUS_INDEX_PATH"  env-default:"./wiktlex-pages.db"`
	ReuseIndex bool   `yaml:"reuse_index" env:"CORPUS_REUSE_INDEX" env-default:"false"`
	// SaveNamespacesRaw lists the namespaces copied into the index.
	SaveNamespacesRaw string `yaml:"save_namespaces" env:"CORPUS_SAVE_NAMESPACES" env-default:"Main,Template,Module,Thesaurus"`
	IndexBatchSize    int    `yaml:"index_batch_size" env:"CORPUS_INDEX_BATCH_SIZE" env-default:"1000"`

	SaveNamespaces []string `yaml:"-" env:"-"`
}

// PipelineConfig holds the orchestration settings.
type PipelineConfig struct {
	Workers           int           `yaml:"workers"             env:"PIPELINE_WORKERS"             env-default:"0"`
	SlowPageThreshold time.Duration `yaml:"slow_page_threshold" env:"PIPELINE_SLOW_PAGE_THRESHOLD" env-default:"100s"`
	ProgressInterval  time.Duration `yaml:"progress_interval"   env:"PIPELINE_PROGRESS_INTERVAL"   env-default:"1s"`

	NamespaceDenylistRaw string `yaml:"namespace_denylist"  env:"PIPELINE_NAMESPACE_DENYLIST" env-default:"Citations,Rhymes,Wiktionary,Appendix"`
	SuffixDenylistRaw    string `yaml:"suffix_denylist"     env:"PIPELINE_SUFFIX_DENYLIST"    env-default:"translations"`
	ExtractNamespacesRaw string `yaml:"extract_namespaces"  env:"PIPELINE_EXTRACT_NAMESPACES" env-default:"Main"`
	LanguageCodesRaw     string `yaml:"language_codes"      env:"PIPELINE_LANGUAGE_CODES"`

	ThesaurusNamespace string `yaml:"thesaurus_namespace" env:"PIPELINE_THESAURUS_NAMESPACE" env-default:"Thesaurus"`
	ExtractThesaurus   bool   `yaml:"extract_thesaurus"   env:"PIPELINE_EXTRACT_THESAURUS"   env-default:"true"`

	MaxFailureRatio         float64 `yaml:"max_failure_ratio"           env:"PIPELINE_MAX_FAILURE_RATIO"           env-default:"0.5"`
	MinPagesForFailureRatio int     `yaml:"min_pages_for_failure_ratio" env:"PIPELINE_MIN_PAGES_FOR_FAILURE_RATIO" env-default:"1000"`
	MessageCap              int     `yaml:"message_cap"                 env:"PIPELINE_MESSAGE_CAP"                 env-default:"100000"`

	IndexOnly      bool `yaml:"index_only"      env:"PIPELINE_INDEX_ONLY"      env-default:"false"`
	SkipExtraction bool `yaml:"skip_extraction" env:"PIPELINE_SKIP_EXTRACTION" env-default:"false"`

	// Parsed from the *Raw fields during validation.
	NamespaceDenylist []string `yaml:"-" env:"-"`
	SuffixDenylist    []string `yaml:"-" env:"-"`
	ExtractNamespaces []string `yaml:"-" env:"-"`
	LanguageCodes     []string `yaml:"-" env:"-"`
}

// OutputConfig controls where entries and the diagnostics report go.
type OutputConfig struct {
	Path          string `yaml:"path"           env:"OUTPUT_PATH"           env-default:"-"`
	HumanReadable bool   `yaml:"human_readable" env:"OUTPUT_HUMAN_READABLE" env-default:"false"`
	ReportPath    string `yaml:"report_path"    env:"OUTPUT_REPORT_PATH"`
	LanguagesPath string `yaml:"languages_path" env:"OUTPUT_LANGUAGES_PATH"`
}

// DatabaseConfig holds PostgreSQL connection settings for the optional entry sink.
// An empty DSN disables the sink.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	BatchSize       int           `yaml:"batch_size"         env:"DATABASE_BATCH_SIZE"         env-default:"500"`
	Migrate         bool          `yaml:"migrate"            env:"DATABASE_MIGRATE"            env-default:"true"`
}

// KafkaConfig holds settings for the optional Kafka entry sink.
// No brokers disables the sink.
type KafkaConfig struct {
	BrokersRaw string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic      string `yaml:"topic"   env:"KAFKA_TOPIC"   env-default:"wiktlex.entries"`

	Brokers []string `yaml:"-" env:"-"`
}

// MetricsConfig enables the Prometheus scrape endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
