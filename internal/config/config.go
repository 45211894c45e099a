package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type StorageConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	ImageBucket string
	VideoBucket string
	UseSSL      bool
	Region      string
	PublicURL   string
}

// MetadataConfig configures the optional postgres metadata index. An empty
// DSN disables the index entirely; the gallery then serves from the object
// store alone.
type MetadataConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	Deployment string
	APIVersion string
}

type ProvidersConfig struct {
	ImageGen     ProviderConfig
	VideoGen     ProviderConfig
	LLM          ProviderConfig
	PollInterval time.Duration
	MaxPolls     int
}

// TasksConfig holds the batch-size thresholds that decide synchronous versus
// background execution, and the page size of the reconciliation sweep.
type TasksConfig struct {
	DeleteThreshold int
	MoveThreshold   int
	SyncPageSize    int
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Storage          StorageConfig
	Metadata         MetadataConfig
	Redis            RedisConfig
	Providers        ProvidersConfig
	Tasks            TasksConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("MEDIALAB")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "15s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("storage.imagebucket", "images")
	v.SetDefault("storage.videobucket", "videos")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("metadata.maxopen", 20)
	v.SetDefault("metadata.maxidle", 5)
	v.SetDefault("metadata.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("providers.apiversion", "preview")
	v.SetDefault("providers.pollinterval", "5s")
	v.SetDefault("providers.maxpolls", 120)

	v.SetDefault("tasks.deletethreshold", 10)
	v.SetDefault("tasks.movethreshold", 5)
	v.SetDefault("tasks.syncpagesize", 100)
}
