package misc

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvSettings loads .env.local then .env - values already set in the
// environment always win.
func LoadEnvSettings(logger *slog.Logger) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()
}

func LoadEnvForNetwork(network string) {
	_ = godotenv.Load(fmt.Sprintf(".env.%s", network))
}

func LoadEnvFile(envFile string) error {
	return godotenv.Load(envFile)
}

// GetSecret fetches a secret by key - env var for now but hidden behind this
// so a real secret store can slot in later.
func GetSecret(key string) string {
	return os.Getenv(key)
}

// SecretKeys returns all currently known secret key names.
func SecretKeys() []string {
	var keys []string
	for _, envVal := range os.Environ() {
		keys = append(keys, envVal[0:strings.IndexByte(envVal, '=')])
	}
	return keys
}
