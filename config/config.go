package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DefaultFeedURL is the feed scanned when no other is configured.
const DefaultFeedURL = "https://weworkremotely.com/categories/remote-programming-jobs.rss"

// DefaultSkills is the keyword list used when the config file does not set one.
var DefaultSkills = []string{
	"python", "javascript", "react", "node.js", "express", "mysql", "mongodb",
	"php", "opencv", "tensorflow", "mediapipe", "langchain", "full-stack",
	"backend", "frontend", "ai", "computer vision",
}

// Bot represents telegram bot parameters.
type Bot struct {
	Token       string        `yaml:"token"`
	ChatID      string        `yaml:"chat_id"`
	APIEndpoint string        `yaml:"api_endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Sqlite struct {
	Datasource string `yaml:"datasource"`
}

type Feed struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Scan holds the filter-and-notify parameters.
type Scan struct {
	Skills []string `yaml:"skills"`
	// Pacing is the minimal interval between two sent alerts. Zero disables it.
	Pacing time.Duration `yaml:"pacing"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config represents parent config group.
type Config struct {
	Bot    Bot    `yaml:"bot"`
	Sqlite Sqlite `yaml:"sqlite"`
	Feed   Feed   `yaml:"feed"`
	Scan   Scan   `yaml:"scan"`
	Log    Log    `yaml:"log"`
}

// Default returns config with every non-secret value filled in.
func Default() Config {
	return Config{
		Bot: Bot{
			Timeout: 10 * time.Second,
		},
		Sqlite: Sqlite{Datasource: "jobs.db"},
		Feed: Feed{
			URL:     DefaultFeedURL,
			Timeout: 30 * time.Second,
		},
		Scan: Scan{
			Skills: append([]string(nil), DefaultSkills...),
			Pacing: time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// GetConfig returns config. An empty cfgPath means defaults plus environment.
func GetConfig(cfgPath string) (*Config, error) {
	config := Default()
	if cfgPath != "" {
		filename, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		yamlFile, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config")
		}
		if err = yaml.Unmarshal(yamlFile, &config); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config %s", filename)
		}
	}

	// A missing .env is the normal case in CI.
	_ = godotenv.Load()
	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		config.Bot.Token = v
	}
	if v := os.Getenv("CHAT_ID"); v != "" {
		config.Bot.ChatID = v
	}
	if v := os.Getenv("FEED_URL"); v != "" {
		config.Feed.URL = v
	}
	if v := os.Getenv("SQLITE_DATASOURCE"); v != "" {
		config.Sqlite.Datasource = v
	}
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Bot.Token) == "":
		return errors.New("bot token is required (BOT_TOKEN)")
	case strings.TrimSpace(c.Bot.ChatID) == "":
		return errors.New("chat id is required (CHAT_ID)")
	case strings.TrimSpace(c.Feed.URL) == "":
		return errors.New("feed url is required")
	case c.Sqlite.Datasource == "":
		return errors.New("sqlite datasource is required")
	case c.Scan.Pacing < 0:
		return errors.Errorf("scan pacing must not be negative, got %s", c.Scan.Pacing)
	}
	for _, s := range c.Scan.Skills {
		if strings.TrimSpace(s) != "" {
			return nil
		}
	}
	return errors.New("at least one skill is required")
}
