// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	ChatModel    string `yaml:"chat_model"`
	VisionModel  string `yaml:"vision_model"`
	WhisperModel string `yaml:"whisper_model"`
}

type SpeechConfig struct {
	ElevenLabsKey string `yaml:"elevenlabs_key"`
	VoiceID       string `yaml:"voice_id"`
	Model         string `yaml:"model"`
}

type StorageConfig struct {
	PhotoBaseURL string `yaml:"photo_base_url"`
}

type QueueConfig struct {
	Workers          int           `yaml:"workers"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	RetryLimit       int           `yaml:"retry_limit"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	ExpireIn         time.Duration `yaml:"expire_in"`
	KeepFor          time.Duration `yaml:"keep_for"`
	ReaperInterval   time.Duration `yaml:"reaper_interval"`
	ArchiveInterval  time.Duration `yaml:"archive_interval"`
}

type MatchConfig struct {
	SweepCron    string        `yaml:"sweep_cron"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	VerdictModel string        `yaml:"verdict_model"`
}

type APIConfig struct {
	Port     int    `yaml:"port"`
	AdminKey string `yaml:"admin_key"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Speech   SpeechConfig   `yaml:"speech"`
	Storage  StorageConfig  `yaml:"storage"`
	Queue    QueueConfig    `yaml:"queue"`
	Match    MatchConfig    `yaml:"match"`
	API      APIConfig      `yaml:"api"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-4-turbo-preview"
	}
	if cfg.AI.VisionModel == "" {
		cfg.AI.VisionModel = "gemini-2.0-flash"
	}
	if cfg.AI.WhisperModel == "" {
		cfg.AI.WhisperModel = "whisper-1"
	}
	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "eleven_turbo_v2"
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 500 * time.Millisecond
	}
	if cfg.Queue.RetryLimit <= 0 {
		cfg.Queue.RetryLimit = 3
	}
	if cfg.Queue.RetryDelay <= 0 {
		cfg.Queue.RetryDelay = 30 * time.Second
	}
	if cfg.Queue.ExpireIn <= 0 {
		cfg.Queue.ExpireIn = 15 * time.Minute
	}
	if cfg.Queue.KeepFor <= 0 {
		cfg.Queue.KeepFor = 14 * 24 * time.Hour
	}
	if cfg.Queue.ReaperInterval <= 0 {
		cfg.Queue.ReaperInterval = time.Minute
	}
	if cfg.Queue.ArchiveInterval <= 0 {
		cfg.Queue.ArchiveInterval = time.Hour
	}
	if cfg.Match.SweepCron == "" {
		cfg.Match.SweepCron = "* * * * *"
	}
	if cfg.Match.MaxDelay <= 0 {
		cfg.Match.MaxDelay = 48 * time.Hour
	}
	if cfg.Match.VerdictModel == "" {
		cfg.Match.VerdictModel = cfg.AI.ChatModel
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
