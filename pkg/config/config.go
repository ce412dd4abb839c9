// Package config loads and validates the pipeline configuration from YAML
// files with environment-variable overrides. Unknown keys are rejected at
// load time, every recognised option has a default, and the content-shaping
// sections are hashed into the run's ConfigHash.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline  PipelineConfig            `yaml:"pipeline"`
	Brand     BrandConfig               `yaml:"brand"`
	Scoring   ScoringConfig             `yaml:"scoring"`
	Templates map[string]TemplateConfig `yaml:"templates"`
	Publish   PublishConfig             `yaml:"publish"`
	Assets    AssetsConfig              `yaml:"assets"`
	Storage   StorageConfig             `yaml:"storage"`
	Server    ServerConfig              `yaml:"server"`
	Postgres  PostgresConfig            `yaml:"postgres"`
	Kafka     KafkaConfig               `yaml:"kafka"`
	Redis     RedisConfig               `yaml:"redis"`
	Telemetry TelemetryConfig           `yaml:"telemetry"`
	Logging   LoggingConfig             `yaml:"logging"`
	Metrics   MetricsConfig             `yaml:"metrics"`
}

// PipelineConfig sizes a run and lists its rotation pools.
type PipelineConfig struct {
	TargetCount       int            `yaml:"targetCount" json:"targetCount"`
	Seed              uint64         `yaml:"seed" json:"seed"`
	Shards            int            `yaml:"shards" json:"shards"`
	QualityThreshold  float64        `yaml:"qualityThreshold" json:"qualityThreshold"`
	DedupThreshold    float64        `yaml:"dedupThreshold" json:"dedupThreshold"`
	MaxRepairAttempts int            `yaml:"maxRepairAttempts" json:"maxRepairAttempts"`
	Families          []FamilyWeight `yaml:"families" json:"families"`
	Tones             []string       `yaml:"tones" json:"tones"`
	CTAs              []CTAConfig    `yaml:"ctas" json:"ctas"`
	Offers            []OfferConfig  `yaml:"offers" json:"offers"`
}

// FamilyWeight enables a content family with its agenda weight.
type FamilyWeight struct {
	Name   string  `yaml:"name" json:"name"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// CTAConfig is one call-to-action variant in the rotation.
type CTAConfig struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// OfferConfig is one offer variant in the rotation.
type OfferConfig struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// BrandConfig holds the brand fields checked by the integrity dimension and
// the hard-constraint lists.
type BrandConfig struct {
	Name               string   `yaml:"name" json:"name"`
	Contact            string   `yaml:"contact" json:"contact"`
	Slogan             string   `yaml:"slogan" json:"slogan"`
	Guarantee          string   `yaml:"guarantee" json:"guarantee"`
	ProofPoints        []string `yaml:"proofPoints" json:"proofPoints"`
	PrivateIdentifiers []string `yaml:"privateIdentifiers" json:"privateIdentifiers"`
	DisallowedClaims   []string `yaml:"disallowedClaims" json:"disallowedClaims"`
}

// ScoringConfig tunes the rubric and the similarity machinery.
type ScoringConfig struct {
	CTAInterval        int                        `yaml:"ctaInterval" json:"ctaInterval"`
	KeyPointsPerWindow int                        `yaml:"keyPointsPerWindow" json:"keyPointsPerWindow"`
	WordWindow         int                        `yaml:"wordWindow" json:"wordWindow"`
	ShingleSize        int                        `yaml:"shingleSize" json:"shingleSize"`
	SignatureSize      int                        `yaml:"signatureSize" json:"signatureSize"`
	LSHBands           int                        `yaml:"lshBands" json:"lshBands"`
	ReadabilityBands   map[string]ReadabilityBand `yaml:"readabilityBands" json:"readabilityBands"`
}

// ReadabilityBand is a target reading-grade interval.
type ReadabilityBand struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// TemplateConfig binds a family to a design template.
type TemplateConfig struct {
	Key      string       `yaml:"key" json:"key"`
	Slots    []SlotConfig `yaml:"slots" json:"slots"`
	Formats  []string     `yaml:"formats" json:"formats"`
	Channels []string     `yaml:"channels" json:"channels"`
}

// SlotConfig maps a named template slot to a unit field.
type SlotConfig struct {
	Name    string `yaml:"name" json:"name"`
	Source  string `yaml:"source" json:"source"`
	Default string `yaml:"default" json:"default"`
}

// PublishConfig controls schedule timestamps on publish tasks.
type PublishConfig struct {
	StartAt time.Time     `yaml:"startAt" json:"startAt"`
	Cadence time.Duration `yaml:"cadence" json:"cadence"`
}

// AssetsConfig lists raw asset locations for the Ingestor.
type AssetsConfig struct {
	Locations []string `yaml:"locations"`
}

// StorageConfig selects where stage batches are persisted.
type StorageConfig struct {
	DataDir  string        `yaml:"dataDir"`
	Backend  string        `yaml:"backend"`
	RedisTTL time.Duration `yaml:"redisTTL"`
	Registry bool          `yaml:"registry"`
}

// ServerConfig holds HTTP server settings for the telemetry service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Telemetry    string `yaml:"telemetry"`
	RenderTasks  string `yaml:"renderTasks"`
	PublishQueue string `yaml:"publishQueue"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// TelemetryConfig selects the event sink and its batching.
type TelemetryConfig struct {
	Sink             string        `yaml:"sink"` // none, file, kafka, or a comma separated list
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	Export           bool          `yaml:"export"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults without environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := defaultConfig()
	if err := decodeStrict(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			TargetCount:       20,
			Seed:              1,
			Shards:            4,
			QualityThreshold:  0.92,
			DedupThreshold:    0.80,
			MaxRepairAttempts: 3,
		},
		Scoring: ScoringConfig{
			CTAInterval:        3,
			KeyPointsPerWindow: 3,
			WordWindow:         100,
			ShingleSize:        5,
			SignatureSize:      128,
			LSHBands:           32,
		},
		Storage: StorageConfig{
			DataDir:  "./data",
			Backend:  "file",
			RedisTTL: 72 * time.Hour,
		},
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "contentengine",
			User:            "contentengine",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "contentengine-telemetry",
			Topics: KafkaTopics{
				Telemetry:    "content-telemetry",
				RenderTasks:  "render-tasks",
				PublishQueue: "publish-queue",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Telemetry: TelemetryConfig{
			Sink:             "file",
			BatchSize:        100,
			FlushInterval:    2 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9091,
		},
	}
}

// Validate checks the content-shaping sections. Family, tone and CTA
// vocabularies are checked again when the agenda is built.
func (c *Config) Validate() error {
	var problems []string
	p := c.Pipeline
	if p.TargetCount <= 0 {
		problems = append(problems, "pipeline.targetCount must be positive")
	}
	if p.Shards <= 0 {
		problems = append(problems, "pipeline.shards must be positive")
	}
	if p.QualityThreshold <= 0 || p.QualityThreshold > 1 {
		problems = append(problems, "pipeline.qualityThreshold must be in (0,1]")
	}
	if p.DedupThreshold <= 0 || p.DedupThreshold > 1 {
		problems = append(problems, "pipeline.dedupThreshold must be in (0,1]")
	}
	if p.MaxRepairAttempts < 0 {
		problems = append(problems, "pipeline.maxRepairAttempts must not be negative")
	}
	if len(p.Families) == 0 {
		problems = append(problems, "pipeline.families must not be empty")
	}
	seen := make(map[string]struct{})
	for _, f := range p.Families {
		if f.Weight <= 0 {
			problems = append(problems, fmt.Sprintf("family %q: weight must be positive", f.Name))
		}
		if _, dup := seen[f.Name]; dup {
			problems = append(problems, fmt.Sprintf("family %q listed twice", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	if len(p.Tones) == 0 {
		problems = append(problems, "pipeline.tones must not be empty")
	}
	if len(p.CTAs) == 0 {
		problems = append(problems, "pipeline.ctas must not be empty")
	}
	for _, cta := range p.CTAs {
		if cta.ID == "" || strings.TrimSpace(cta.Text) == "" {
			problems = append(problems, "every cta needs an id and text")
			break
		}
	}
	if c.Brand.Name == "" {
		problems = append(problems, "brand.name is required")
	}
	if c.Brand.Contact == "" {
		problems = append(problems, "brand.contact is required")
	}
	s := c.Scoring
	if s.CTAInterval <= 0 || s.KeyPointsPerWindow <= 0 || s.WordWindow <= 0 {
		problems = append(problems, "scoring.ctaInterval, keyPointsPerWindow and wordWindow must be positive")
	}
	if s.ShingleSize <= 0 || s.SignatureSize <= 0 {
		problems = append(problems, "scoring.shingleSize and signatureSize must be positive")
	}
	if s.LSHBands < 0 || (s.LSHBands > 0 && s.SignatureSize%s.LSHBands != 0) {
		problems = append(problems, "scoring.lshBands must divide scoring.signatureSize")
	}
	for family, tpl := range c.Templates {
		if tpl.Key == "" {
			problems = append(problems, fmt.Sprintf("templates.%s.key is required", family))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Hash returns the hex sha256 of the content-shaping configuration. Maps are
// marshalled with sorted keys, so the hash is stable across loads.
func (c *Config) Hash() string {
	payload := struct {
		Pipeline  PipelineConfig            `json:"pipeline"`
		Brand     BrandConfig               `json:"brand"`
		Scoring   ScoringConfig             `json:"scoring"`
		Templates map[string]TemplateConfig `json:"templates"`
		Publish   PublishConfig             `json:"publish"`
	}{c.Pipeline, c.Brand, c.Scoring, c.Templates, c.Publish}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CTAText returns the configured text for a CTA id.
func (p PipelineConfig) CTAText(id string) string {
	for _, cta := range p.CTAs {
		if cta.ID == id {
			return cta.Text
		}
	}
	return ""
}

// OfferText returns the configured text for an offer id.
func (p PipelineConfig) OfferText(id string) string {
	for _, offer := range p.Offers {
		if offer.ID == id {
			return offer.Text
		}
	}
	return ""
}

// applyEnvOverrides reads CE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CE_PIPELINE_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Pipeline.Seed = seed
		}
	}
	if v := os.Getenv("CE_PIPELINE_TARGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.TargetCount = n
		}
	}
	if v := os.Getenv("CE_PIPELINE_SHARDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Shards = n
		}
	}
	if v := os.Getenv("CE_STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("CE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CE_TELEMETRY_SINK"); v != "" {
		cfg.Telemetry.Sink = v
	}
	if v := os.Getenv("CE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
