package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/errors"
)

const sampleYAML = `
pipeline:
  targetCount: 10
  seed: 7
  shards: 2
  families:
    - name: article
      weight: 5
    - name: flyer
      weight: 3
  tones: [friendly, expert]
  ctas:
    - id: book
      text: Book your detail today
brand:
  name: Shine Auto
  contact: hello@shine.example
templates:
  flyer:
    key: canva-flyer-v1
    formats: [png]
publish:
  cadence: 2h
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Pipeline.TargetCount)
	assert.Equal(t, uint64(7), cfg.Pipeline.Seed)
	assert.Equal(t, 0.92, cfg.Pipeline.QualityThreshold)
	assert.Equal(t, 0.80, cfg.Pipeline.DedupThreshold)
	assert.Equal(t, 3, cfg.Pipeline.MaxRepairAttempts)
	assert.Equal(t, 5, cfg.Scoring.ShingleSize)
	assert.Equal(t, 2*time.Hour, cfg.Publish.Cadence)
	assert.Equal(t, "Book your detail today", cfg.Pipeline.CTAText("book"))
	assert.Empty(t, cfg.Pipeline.CTAText("missing"))
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("pipeline:\n  targetCount: 3\n  colour: blue\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestValidateReportsProblems(t *testing.T) {
	cfg, err := Parse([]byte("pipeline:\n  targetCount: 0\n"))
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "targetCount")
	assert.Contains(t, err.Error(), "brand.name")
	assert.True(t, apperrors.IsFatal(err))
}

func TestValidateLSHBandsMustDivideSignature(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	cfg.Scoring.LSHBands = 7
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrInvalidConfig)
}

func TestHashIsStableAndSensitive(t *testing.T) {
	a, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())

	b.Pipeline.Seed++
	assert.NotEqual(t, a.Hash(), b.Hash())

	// Infrastructure settings are not part of the content hash.
	c, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	c.Redis.Addr = "elsewhere:6379"
	assert.Equal(t, a.Hash(), c.Hash())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv("CE_PIPELINE_SEED", "99")
	t.Setenv("CE_STORAGE_DATA_DIR", "/tmp/ce")
	t.Setenv("CE_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Pipeline.Seed)
	assert.Equal(t, "/tmp/ce", cfg.Storage.DataDir)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
