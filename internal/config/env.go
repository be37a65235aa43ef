package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "GDRIVE_MIRROR_CONFIG"
	EnvDestination = "GDRIVE_MIRROR_DESTINATION"
	EnvCredentials = "GDRIVE_MIRROR_CREDENTIALS"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath       string // GDRIVE_MIRROR_CONFIG: override config file path
	Destination      string // GDRIVE_MIRROR_DESTINATION: mirror destination
	ClientSecretFile string // GDRIVE_MIRROR_CREDENTIALS: OAuth client secret file
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:       os.Getenv(EnvConfig),
		Destination:      os.Getenv(EnvDestination),
		ClientSecretFile: os.Getenv(EnvCredentials),
	}
}
