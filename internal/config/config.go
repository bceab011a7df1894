package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	LogLevel   string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Store      string   `yaml:"store" env:"STORE" env-default:"redis"`
	Redis      Redis    `yaml:"redis"`
	Room       Room     `yaml:"room"`
	Liveness   Liveness `yaml:"liveness"`
	Client     Client   `yaml:"client"`
}

type Redis struct {
	Host     string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	RoomTTL  time.Duration `yaml:"room-ttl" env:"REDIS_ROOM_TTL" env-default:"24h"`
}

type Room struct {
	CreateAttempts int `yaml:"create-attempts" env:"ROOM_CREATE_ATTEMPTS" env-default:"20"`
}

// Liveness tunes the heartbeat and the opponent timeout of a seated player.
type Liveness struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"LIVENESS_HEARTBEAT_INTERVAL" env-default:"10s"`
	Timeout           time.Duration `yaml:"timeout" env:"LIVENESS_TIMEOUT" env-default:"30s"`
}

type Client struct {
	ServerURL         string `yaml:"server-url" env:"CLIENT_SERVER_URL" env-default:"ws://localhost:9091/ws"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env:"CLIENT_SQLITE_STORAGE_PATH" env-default:"tictactoe.db"`
	LogFile           string `yaml:"log-file" env:"CLIENT_LOG_FILE"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load reads the config file when it exists and falls back to environment variables otherwise.
func Load(path string) (*Config, error) {
	config := &Config{}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("unable to load config from env: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("unable to stat config file: %w", err)
	default:
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("unable to load config file: %w", err)
		}
	}

	return config, nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
