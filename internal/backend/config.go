package backend

import (
	"fmt"
	"time"

	"expensetracker/internal/config"
)

const defaultMongoDialTimeout = 10 * time.Second

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s (valid: %v)", appConfig.DataBackend, GetBackendTypeStrings())
	}

	return Config{
		Type:             backendType,
		SQLiteDBPath:     appConfig.SQLiteDBPath,
		MongoURI:         appConfig.ActiveMongoURI(),
		MongoDatabase:    appConfig.MongoDatabase,
		MongoDialTimeout: defaultMongoDialTimeout,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case MongoBackend:
		if c.MongoURI == "" {
			return fmt.Errorf("MongoDB URI is required for mongo backend")
		}
	}

	return nil
}

// ValidateShared fails unless other processes can read what this backend
// writes, which is what the sheet mirror worker relies on.
func (c Config) ValidateShared() error {
	if !c.Type.Shared() {
		return fmt.Errorf("data backend '%s' is not shared: the worker needs sqlite or mongo", c.Type)
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := []BackendType{MemoryBackend, SQLiteBackend, MongoBackend}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
