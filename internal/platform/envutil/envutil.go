package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		if log != nil {
			log.Debug("env var not set, using default", "key", key, "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		if log != nil {
			log.Warn("env var not an int, using default", "key", key, "value", val, "default", defaultVal)
		}
		return defaultVal
	}
	return n
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if log != nil {
			log.Warn("env var not a bool, using default", "key", key, "value", val)
		}
		return defaultVal
	}
}
