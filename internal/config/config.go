package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/augustino-massawe/chat-notifier/pkg/config"
)

type Config struct {
	Server ServerConfig
	Kafka  KafkaConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	Push   PushConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type KafkaConfig struct {
	Brokers             string
	Topic               string
	GroupID             string `mapstructure:"group_id"`
	AutoOffsetReset     string `mapstructure:"auto_offset_reset"`
	MaxPollIntervalMs   int    `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMs    int    `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMs int    `mapstructure:"heartbeat_interval_ms"`
}

type MongoConfig struct {
	URI      string
	Database string

	// Populated by parseDuration after decode; see Load.
	ConnectTimeout time.Duration `mapstructure:"-"`
	OpTimeout      time.Duration `mapstructure:"-"`
}

type RedisConfig struct {
	Enabled    bool
	Address    string
	Password   string
	DB         int
	SeenPrefix string        `mapstructure:"seen_prefix"`
	SeenTTL    time.Duration `mapstructure:"-"`
}

type PushConfig struct {
	ProjectID       string        `mapstructure:"project_id"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	SendTimeout     time.Duration `mapstructure:"-"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("mongo.uri", "MONGO_URI")
	v.BindEnv("mongo.database", "MONGO_DATABASE")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("push.project_id", "FCM_PROJECT_ID")
	v.BindEnv("push.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Durations are stored as strings in yaml/env and stay out of the
	// decode above (viper's duration hook would fail the whole Load on a
	// bad value); parse explicitly so a bad value degrades to the
	// default rather than an error.
	cfg.Mongo.ConnectTimeout = parseDuration(v, "mongo.connect_timeout", 10*time.Second)
	cfg.Mongo.OpTimeout = parseDuration(v, "mongo.op_timeout", 3*time.Second)
	cfg.Redis.SeenTTL = parseDuration(v, "redis.seen_ttl", 6*time.Hour)
	cfg.Push.SendTimeout = parseDuration(v, "push.send_timeout", 10*time.Second)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8093)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-message-created")
	v.SetDefault("kafka.group_id", "chat-notifier")
	v.SetDefault("kafka.auto_offset_reset", "latest")
	v.SetDefault("kafka.max_poll_interval_ms", 300000)
	v.SetDefault("kafka.session_timeout_ms", 45000)
	v.SetDefault("kafka.heartbeat_interval_ms", 3000)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.op_timeout", "3s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.seen_prefix", "notify:seen")
	v.SetDefault("redis.seen_ttl", "6h")
	v.SetDefault("push.project_id", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.send_timeout", "10s")
	v.SetDefault("log.level", "info")
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
