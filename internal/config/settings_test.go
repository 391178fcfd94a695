package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, "mtg", s.Catalog.Selector)
	assert.Equal(t, 224, s.Image.Width)
	assert.Equal(t, 312, s.Image.Height)
	assert.Equal(t, 90, s.Image.Quality)
	assert.Equal(t, "train", s.Split.Mode)
	assert.Equal(t, 420, s.Export.ShardSizeMB)
	assert.NoError(t, s.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().Image, s.Image)
	assert.Equal(t, []string{"train"}, s.Augment.Partitions)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcg.yaml")
	content := `
catalog:
  selector: ga
  max_cards: 50
  retry:
    delay: 2s
image:
  width: 128
  height: 176
augment:
  enabled: true
  amount: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "ga", s.Catalog.Selector)
	assert.Equal(t, 50, s.Catalog.MaxCards)
	assert.Equal(t, 2*time.Second, s.Catalog.Retry.Delay)
	assert.Equal(t, 3, s.Catalog.Retry.Attempts)
	assert.Equal(t, 128, s.Image.Width)
	assert.Equal(t, 176, s.Image.Height)
	assert.True(t, s.Augment.Enabled)
	assert.Equal(t, 3, s.Augment.Amount)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image:\n  width: 128\n"), 0644))
	t.Setenv("TCG_IMAGE_WIDTH", "300")

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, s.Image.Width)
}

func TestLoadFlagsOverrideEverything(t *testing.T) {
	t.Setenv("TCG_WORKERS", "2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("threads", 0, "")
	flags.String("tcg", "mtg", "")
	require.NoError(t, flags.Parse([]string{"--threads=7", "--tcg=ga"}))

	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), flags)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Workers)
	assert.Equal(t, 7, s.WorkerCount())
	assert.Equal(t, "ga", s.Catalog.Selector)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image: [unclosed"), 0644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty root", func(s *Settings) { s.Output.Root = "" }},
		{"negative workers", func(s *Settings) { s.Workers = -1 }},
		{"zero width", func(s *Settings) { s.Image.Width = 0 }},
		{"quality out of range", func(s *Settings) { s.Image.Quality = 101 }},
		{"unknown split", func(s *Settings) { s.Split.Mode = "random" }},
		{"fractions over one", func(s *Settings) { s.Split.TestFraction, s.Split.ValidationFraction = 0.6, 0.5 }},
		{"negative amount", func(s *Settings) { s.Augment.Amount = -1 }},
		{"unknown partition", func(s *Settings) { s.Augment.Partitions = []string{"holdout"} }},
		{"publish without bucket", func(s *Settings) { s.Publish.Enabled, s.Publish.Endpoint = true, "localhost:9000" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tcg.yaml")
	s := DefaultSettings()
	s.Catalog.Selector = "mtg:set:lea"
	s.Split.Mode = "fraction"
	s.Split.TestFraction = 0.1

	require.NoError(t, s.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "mtg:set:lea", loaded.Catalog.Selector)
	assert.Equal(t, "fraction", loaded.Split.Mode)
	assert.InDelta(t, 0.1, loaded.Split.TestFraction, 1e-9)
}
