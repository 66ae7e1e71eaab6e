package backend

import (
	"fmt"
	"time"

	"expenses/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// JSON file specific
	JSONFilePath string

	// Relational specific
	DBURL      string
	DBUser     string
	DBPassword string

	// Zone for timestamps stored without an offset
	Location *time.Location
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	loc, err := appConfig.Location()
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone in config: %w", err)
	}

	return Config{
		Type: backendType,

		JSONFilePath: appConfig.JSONFilePath,

		DBURL:      appConfig.DBURL,
		DBUser:     appConfig.DBUser,
		DBPassword: appConfig.DBPassword,

		Location: loc,
	}, nil
}

// WithType returns a copy of c selecting another backend.
func (c Config) WithType(t BackendType) Config {
	c.Type = t
	return c
}

// Validate checks what each backend needs before it is built. Relational
// credentials are left to the driver setup, which knows whether the
// database needs them.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case JSONBackend:
		if c.JSONFilePath == "" {
			return fmt.Errorf("JSON file path is required for json backend")
		}

	case RelationalBackend:
		if c.DBURL == "" {
			return fmt.Errorf("database URL is required for relational backend")
		}

	case MemoryBackend:
		// nothing to configure
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, JSONBackend, RelationalBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
