package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // achievements.timezone must resolve on minimal images

	"github.com/spf13/viper"
)

// Regeneration modes for plans.regeneration_mode.
const (
	RegenerationSupersede = "supersede"
	RegenerationDelete    = "delete"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	S3           S3Config           `mapstructure:"s3"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	AI           AIConfig           `mapstructure:"ai"`
	Plans        PlansConfig        `mapstructure:"plans"`
	Achievements AchievementsConfig `mapstructure:"achievements"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // Plan generation blocks on the AI call
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// RedisConfig enables the shared generation lock. Empty Addr keeps the lock in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	LockWait time.Duration `mapstructure:"lock_wait"`
}

// S3Config configures the raw AI payload archive. Empty BucketName disables it.
type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	ArchivePrefix   string        `mapstructure:"archive_prefix"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// AIConfig points at the plan generation service.
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	WorkoutPath string        `mapstructure:"workout_path"`
	MealPath    string        `mapstructure:"meal_path"`
}

type PlansConfig struct {
	RegenerationMode string `mapstructure:"regeneration_mode"`
	// Players updated within this window are carried into a new month by renewal.
	RenewalActiveWindow time.Duration `mapstructure:"renewal_active_window"`
	SweepConcurrency    int           `mapstructure:"sweep_concurrency"`
}

type AchievementsConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (a AchievementsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("achievements.timezone: %w", err)
	}
	return loc, nil
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // dev | prod
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Environment and defaults are enough to run.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "fithero")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "3m")
	v.SetDefault("redis.lock_wait", "2m")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.archive_prefix", "raw-plans")
	v.SetDefault("s3.presign_expiry", "15m")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("ai.base_url", "http://localhost:8001")
	v.SetDefault("ai.timeout", "90s")
	v.SetDefault("ai.workout_path", "/generate-monthly-workout-plan")
	v.SetDefault("ai.meal_path", "/generate-monthly-meal-plan")
	v.SetDefault("plans.regeneration_mode", RegenerationSupersede)
	v.SetDefault("plans.renewal_active_window", "720h")
	v.SetDefault("plans.sweep_concurrency", 4)
	v.SetDefault("achievements.timezone", "UTC")
	v.SetDefault("log.mode", "dev")
}

// Validate rejects values the services cannot run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("database.driver must be mongo or memory, got %q", c.Database.Driver)
	}
	switch c.Plans.RegenerationMode {
	case RegenerationSupersede, RegenerationDelete:
	default:
		return fmt.Errorf("plans.regeneration_mode must be %s or %s, got %q",
			RegenerationSupersede, RegenerationDelete, c.Plans.RegenerationMode)
	}
	if c.Plans.SweepConcurrency < 0 {
		return fmt.Errorf("plans.sweep_concurrency must not be negative")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if _, err := c.Achievements.Location(); err != nil {
		return err
	}
	return nil
}
