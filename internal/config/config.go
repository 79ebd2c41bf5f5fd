package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	commoncfg "twin-data/common/config"
)

// 存储后端
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config twin-data / twin-feed 配置
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`

	// redis | postgres | memory
	StorageBackend string                   `yaml:"storage_backend"`
	Database       commoncfg.DatabaseConfig `yaml:"-"`
	Redis          commoncfg.RedisConfig    `yaml:"-"`
	MQTT           MQTTConfig               `yaml:"mqtt"`

	// 变更通知频道（Redis Pub/Sub）
	ChangeChannel string `yaml:"change_channel"`
	// 录入日期/时间按此时区解释
	Timezone string `yaml:"timezone"`

	// 参数目录 YAML（为空时使用内置目录）
	CatalogFile string       `yaml:"catalog_file"`
	SeedSensors []SeedSensor `yaml:"seed_sensors"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// MQTTConfig 自动传感器实时数据订阅
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"` // 如 "twin/sensors/+/value"
	QoS      byte   `yaml:"qos"`
}

// SeedSensor YAML 中声明的自动传感器
type SeedSensor struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"`
	Unit  string  `yaml:"unit"`
	Value float64 `yaml:"value"`
}

// Load 加载配置：默认值 → TWIN_CONFIG 指向的 YAML → 环境变量
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.StorageBackend = BackendRedis
	cfg.ChangeChannel = "twin:changes"
	cfg.Timezone = "UTC"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "twin-feed"
	cfg.MQTT.Topic = "twin/sensors/+/value"
	cfg.MQTT.QoS = 1

	if path := os.Getenv("TWIN_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.StorageBackend = getEnv("STORAGE_BACKEND", cfg.StorageBackend)
	cfg.ChangeChannel = getEnv("CHANGE_CHANNEL", cfg.ChangeChannel)
	cfg.Timezone = getEnv("TWIN_TIMEZONE", cfg.Timezone)
	cfg.CatalogFile = getEnv("CATALOG_FILE", cfg.CatalogFile)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "twin"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", strconv.FormatBool(cfg.MQTT.Enabled)) == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", cfg.MQTT.Topic)
	if q := parseInt(getEnv("MQTT_QOS", ""), -1); q >= 0 && q <= 2 {
		cfg.MQTT.QoS = byte(q)
	}

	switch cfg.StorageBackend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location 录入时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// MQTTCommon 转换为 common/mqtt 使用的连接配置
func (c *Config) MQTTCommon() *commoncfg.MQTTConfig {
	return &commoncfg.MQTTConfig{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Username: c.MQTT.Username,
		Password: c.MQTT.Password,
		QoS:      c.MQTT.QoS,
	}
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
