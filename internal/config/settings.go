package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings holds all configuration options.
type Settings struct {
	Catalog Catalog `mapstructure:"catalog" yaml:"catalog"`
	Output  Output  `mapstructure:"output" yaml:"output"`
	Image   Image   `mapstructure:"image" yaml:"image"`
	Split   Split   `mapstructure:"split" yaml:"split"`
	Augment Augment `mapstructure:"augment" yaml:"augment"`
	Export  Export  `mapstructure:"export" yaml:"export"`
	Publish Publish `mapstructure:"publish" yaml:"publish"`
	Log     Log     `mapstructure:"log" yaml:"log"`

	// Workers is the size of the worker pool shared by download and
	// augmentation. 0 means one worker per CPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// Catalog configures the metadata source.
type Catalog struct {
	Selector  string        `mapstructure:"selector" yaml:"selector"`     // mtg, mtg:<query>, ga
	MaxCards  int           `mapstructure:"max_cards" yaml:"max_cards"`   // 0 = all
	Refresh   bool          `mapstructure:"refresh" yaml:"refresh"`       // ignore the cached catalog
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"` // sent with every request
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`       // per catalog request
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
	RateBurst int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	Retry     Retry         `mapstructure:"retry" yaml:"retry"`
}

// Retry defines the retry policy for catalog pages.
type Retry struct {
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	Backoff  float64       `mapstructure:"backoff" yaml:"backoff"`
}

// Output configures where the dataset is written.
type Output struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// Image configures the primary image raster.
type Image struct {
	Width        int           `mapstructure:"width" yaml:"width"`
	Height       int           `mapstructure:"height" yaml:"height"`
	Quality      int           `mapstructure:"quality" yaml:"quality"`
	StrictCheck  bool          `mapstructure:"strict_check" yaml:"strict_check"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
}

// Split configures the train/test/validation policy.
type Split struct {
	Mode               string  `mapstructure:"mode" yaml:"mode"` // train, fraction, every
	Seed               int64   `mapstructure:"seed" yaml:"seed"`
	TestFraction       float64 `mapstructure:"test_fraction" yaml:"test_fraction"`
	ValidationFraction float64 `mapstructure:"validation_fraction" yaml:"validation_fraction"`
	TestEvery          int     `mapstructure:"test_every" yaml:"test_every"`
	ValidationEvery    int     `mapstructure:"validation_every" yaml:"validation_every"`
}

// Augment configures the augmentation engine.
type Augment struct {
	Enabled         bool     `mapstructure:"enabled" yaml:"enabled"`
	Amount          int      `mapstructure:"amount" yaml:"amount"`
	Verify          bool     `mapstructure:"verify" yaml:"verify"`
	Seed            int64    `mapstructure:"seed" yaml:"seed"` // 0 = random per run
	FirstUpsideDown bool     `mapstructure:"first_upside_down" yaml:"first_upside_down"`
	Partitions      []string `mapstructure:"partitions" yaml:"partitions"`
}

// Export configures parquet export.
type Export struct {
	Parquet     bool `mapstructure:"parquet" yaml:"parquet"`
	ShardSizeMB int  `mapstructure:"shard_size_mb" yaml:"shard_size_mb"`
}

// Publish configures mirroring the dataset to an S3-compatible bucket.
type Publish struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Catalog: Catalog{
			Selector:  "mtg",
			UserAgent: "TCGFetch",
			Timeout:   5 * time.Minute,
			RateLimit: 10,
			RateBurst: 5,
			Retry: Retry{
				Attempts: 3,
				Delay:    500 * time.Millisecond,
				Backoff:  2,
			},
		},
		Output: Output{Root: "tcg-data"},
		Image: Image{
			Width:        224,
			Height:       312,
			Quality:      90,
			FetchTimeout: 30 * time.Second,
		},
		Split: Split{
			Mode: "train",
			Seed: 42,
		},
		Augment: Augment{
			Amount:     5,
			Partitions: []string{"train"},
		},
		Export: Export{ShardSizeMB: 420},
		Log:    Log{Level: "info"},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"tcg":            "catalog.selector",
	"amount":         "catalog.max_cards",
	"refresh":        "catalog.refresh",
	"path":           "output.root",
	"threads":        "workers",
	"width":          "image.width",
	"height":         "image.height",
	"strict":         "image.strict_check",
	"split":          "split.mode",
	"seed":           "split.seed",
	"test-fraction":  "split.test_fraction",
	"val-fraction":   "split.validation_fraction",
	"augment":        "augment.enabled",
	"augment-amount": "augment.amount",
	"verify":         "augment.verify",
	"upside-down":    "augment.first_upside_down",
	"parquet":        "export.parquet",
	"publish":        "publish.enabled",
	"log-level":      "log.level",
}

// Load builds Settings from defaults, an optional YAML file, TCG_*
// environment variables and the given flags. A missing file is not an
// error; an unreadable or malformed one is.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tcg")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TCG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("catalog.selector", d.Catalog.Selector)
	v.SetDefault("catalog.max_cards", d.Catalog.MaxCards)
	v.SetDefault("catalog.refresh", d.Catalog.Refresh)
	v.SetDefault("catalog.user_agent", d.Catalog.UserAgent)
	v.SetDefault("catalog.timeout", d.Catalog.Timeout)
	v.SetDefault("catalog.rate_limit", d.Catalog.RateLimit)
	v.SetDefault("catalog.rate_burst", d.Catalog.RateBurst)
	v.SetDefault("catalog.retry.attempts", d.Catalog.Retry.Attempts)
	v.SetDefault("catalog.retry.delay", d.Catalog.Retry.Delay)
	v.SetDefault("catalog.retry.backoff", d.Catalog.Retry.Backoff)

	v.SetDefault("output.root", d.Output.Root)
	v.SetDefault("workers", d.Workers)

	v.SetDefault("image.width", d.Image.Width)
	v.SetDefault("image.height", d.Image.Height)
	v.SetDefault("image.quality", d.Image.Quality)
	v.SetDefault("image.strict_check", d.Image.StrictCheck)
	v.SetDefault("image.fetch_timeout", d.Image.FetchTimeout)

	v.SetDefault("split.mode", d.Split.Mode)
	v.SetDefault("split.seed", d.Split.Seed)
	v.SetDefault("split.test_fraction", d.Split.TestFraction)
	v.SetDefault("split.validation_fraction", d.Split.ValidationFraction)
	v.SetDefault("split.test_every", d.Split.TestEvery)
	v.SetDefault("split.validation_every", d.Split.ValidationEvery)

	v.SetDefault("augment.enabled", d.Augment.Enabled)
	v.SetDefault("augment.amount", d.Augment.Amount)
	v.SetDefault("augment.verify", d.Augment.Verify)
	v.SetDefault("augment.seed", d.Augment.Seed)
	v.SetDefault("augment.first_upside_down", d.Augment.FirstUpsideDown)
	v.SetDefault("augment.partitions", d.Augment.Partitions)

	v.SetDefault("export.parquet", d.Export.Parquet)
	v.SetDefault("export.shard_size_mb", d.Export.ShardSizeMB)

	v.SetDefault("publish.enabled", d.Publish.Enabled)
	v.SetDefault("publish.endpoint", d.Publish.Endpoint)
	v.SetDefault("publish.access_key", d.Publish.AccessKey)
	v.SetDefault("publish.secret_key", d.Publish.SecretKey)
	v.SetDefault("publish.bucket", d.Publish.Bucket)
	v.SetDefault("publish.prefix", d.Publish.Prefix)
	v.SetDefault("publish.use_ssl", d.Publish.UseSSL)

	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks the settings for values the pipeline cannot work with.
func (s *Settings) Validate() error {
	if s.Output.Root == "" {
		return errors.New("output root must be set")
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", s.Workers)
	}
	if s.Catalog.MaxCards < 0 {
		return fmt.Errorf("max cards must be >= 0, got %d", s.Catalog.MaxCards)
	}
	if s.Image.Width <= 0 || s.Image.Height <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", s.Image.Width, s.Image.Height)
	}
	if s.Image.Quality < 1 || s.Image.Quality > 100 {
		return fmt.Errorf("jpeg quality must be within 1..100, got %d", s.Image.Quality)
	}

	switch s.Split.Mode {
	case "train", "fraction", "every":
	default:
		return fmt.Errorf("unknown split mode %q", s.Split.Mode)
	}
	if s.Split.TestFraction < 0 || s.Split.ValidationFraction < 0 ||
		s.Split.TestFraction+s.Split.ValidationFraction > 1 {
		return fmt.Errorf("split fractions must be >= 0 and sum to at most 1")
	}
	if s.Split.TestEvery < 0 || s.Split.ValidationEvery < 0 {
		return fmt.Errorf("split intervals must be >= 0")
	}

	if s.Augment.Amount < 0 {
		return fmt.Errorf("augment amount must be >= 0, got %d", s.Augment.Amount)
	}
	for _, p := range s.Augment.Partitions {
		switch p {
		case "train", "test", "validation":
		default:
			return fmt.Errorf("unknown partition %q", p)
		}
	}

	if s.Publish.Enabled && (s.Publish.Endpoint == "" || s.Publish.Bucket == "") {
		return errors.New("publish requires an endpoint and a bucket")
	}
	return nil
}

// WorkerCount resolves Workers, defaulting to the host parallelism.
func (s *Settings) WorkerCount() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return runtime.NumCPU()
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
