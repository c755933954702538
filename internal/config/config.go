package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "deckgen.yaml"

type Config struct {
	Text     ServiceConfig  `yaml:"text"`
	Image    ImageConfig    `yaml:"image"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type ServiceConfig struct {
	// BaseURL may list several endpoints separated by commas; they are
	// tried in order.
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	APIKey string `yaml:"-"`
}

type ImageConfig struct {
	ServiceConfig `yaml:",inline"`
	Size          string `yaml:"size"`
}

type PipelineConfig struct {
	ResearchPath   string `yaml:"research_path"`
	CheckpointPath string `yaml:"checkpoint_path"`
	OutputDir      string `yaml:"output_dir"`
	SlideCount     int    `yaml:"slide_count"`
	MaxRetries     int    `yaml:"max_retries"`
	InitialDelayMS int    `yaml:"initial_delay_ms"`
}

func (p PipelineConfig) InitialDelay() time.Duration {
	return time.Duration(p.InitialDelayMS) * time.Millisecond
}

func Default() Config {
	return Config{
		Text: ServiceConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 120,
		},
		Image: ImageConfig{
			ServiceConfig: ServiceConfig{
				BaseURL:        "https://api.openai.com/v1",
				Model:          "dall-e-3",
				APIKeyEnv:      "OPENAI_API_KEY",
				TimeoutSeconds: 180,
			},
			Size: "1024x1024",
		},
		Pipeline: PipelineConfig{
			ResearchPath:   "research.txt",
			CheckpointPath: "slides.json",
			OutputDir:      "slide_images",
			SlideCount:     10,
			MaxRetries:     3,
			InitialDelayMS: 1000,
		},
	}
}

// Load overlays the YAML file at path on the defaults. A missing file at
// the default path is not an error; an explicitly named one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Text.Model) == "" {
		problems = append(problems, "text.model is required")
	}
	if strings.TrimSpace(c.Image.Model) == "" {
		problems = append(problems, "image.model is required")
	}
	if strings.TrimSpace(c.Image.Size) == "" {
		problems = append(problems, "image.size is required")
	}
	if c.Pipeline.SlideCount < 0 {
		problems = append(problems, "pipeline.slide_count must not be negative")
	}
	if c.Pipeline.MaxRetries < 0 {
		problems = append(problems, "pipeline.max_retries must not be negative")
	}
	if c.Pipeline.InitialDelayMS < 0 {
		problems = append(problems, "pipeline.initial_delay_ms must not be negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ResolveAPIKeys loads envFile (if present) into the process environment
// without overriding variables already set, then fills the API keys from
// the configured variable names.
func (c *Config) ResolveAPIKeys(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	c.Text.APIKey = lookupKey(c.Text.APIKeyEnv)
	c.Image.APIKey = lookupKey(c.Image.APIKeyEnv)
	return nil
}

func lookupKey(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

// DefaultYAML is written by `deckgen init`.
const DefaultYAML = `text:
  base_url: https://api.openai.com/v1
  model: gpt-4o
  api_key_env: OPENAI_API_KEY
  timeout_seconds: 120
image:
  base_url: https://api.openai.com/v1
  model: dall-e-3
  api_key_env: OPENAI_API_KEY
  timeout_seconds: 180
  size: 1024x1024
pipeline:
  research_path: research.txt
  checkpoint_path: slides.json
  output_dir: slide_images
  slide_count: 10
  max_retries: 3
  initial_delay_ms: 1000
`
