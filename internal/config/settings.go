// Package config loads process settings from the environment and the
// intersection topology from YAML.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Settings holds everything read from the environment.
type Settings struct {
	MQTTBroker       string
	MQTTClientID     string
	TopologyFile     string
	TickRate         float64
	Seed             int64
	HeartbeatSeconds float64
	HTTPAddr         string
	MongoURI         string
	MongoDB          string
	JWTSecret        string
	JWTExpiry        time.Duration
	OperatorUsername string
	OperatorPassHash string
	OperatorPassword string
	LogLevel         string
	LogFormat        string
}

// LoadSettings reads .env files (if any) and then the environment. Values that
// fail to parse fall back to their defaults.
func LoadSettings(envFiles ...string) (Settings, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, err
	}

	s := Settings{
		MQTTBroker:       getString("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:     getString("MQTT_CLIENT_ID", ""),
		TopologyFile:     getString("TOPOLOGY_FILE", "simulation.yaml"),
		TickRate:         getFloat("TICK_RATE", 30),
		Seed:             getInt("SIM_SEED", time.Now().UnixNano()),
		HeartbeatSeconds: getFloat("HEARTBEAT_SECONDS", 1),
		HTTPAddr:         getString("HTTP_ADDR", ":8080"),
		MongoURI:         getString("MONGO_URI", ""),
		MongoDB:          getString("MONGO_DB", "traffic"),
		JWTSecret:        getString("JWT_SECRET", "default-secret-key-change-in-production"),
		JWTExpiry:        getDuration("JWT_EXPIRY", 24*time.Hour),
		OperatorUsername: getString("OPERATOR_USERNAME", "operator"),
		OperatorPassHash: getString("OPERATOR_PASSWORD_HASH", ""),
		OperatorPassword: os.Getenv("OPERATOR_PASSWORD"),
		LogLevel:         getString("LOG_LEVEL", "info"),
		LogFormat:        getString("LOG_FORMAT", "text"),
	}
	if s.MQTTClientID == "" {
		s.MQTTClientID = "simulator-" + uuid.NewString()
	}
	if s.TickRate <= 0 {
		s.TickRate = 30
	}
	return s, nil
}

// SetupLogging applies the log level and format. An unknown level keeps info.
func SetupLogging(level, format string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
