package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/auth"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
)

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", path).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", path).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", path).Msg("Path is a directory")
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		path = absPath
	}

	return path
}

// HandleConfigError logs a configuration failure naming the offending file
// or key and exits.
func HandleConfigError(err error) {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		switch {
		case errors.Is(err, config.ErrNotFound):
			log.Fatal().Str("path", cfgErr.Path).Msg("Configuration file not found. Pass --config or create config.json")
		case cfgErr.Key != "" && cfgErr.Err == nil:
			log.Fatal().Str("path", cfgErr.Path).Str("key", cfgErr.Key).Msg("Required configuration key is missing")
		case cfgErr.Key != "":
			log.Fatal().Err(cfgErr.Err).Str("path", cfgErr.Path).Str("key", cfgErr.Key).Msg("Invalid configuration value")
		default:
			log.Fatal().Err(err).Str("path", cfgErr.Path).Msg("Failed to load configuration")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error loading configuration")
	}
	os.Exit(1)
}

// HandleValidationError processes auth.ValidationError and exits with appropriate messaging.
func HandleValidationError(err error) {
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		switch validationErr.Type {
		case auth.ErrTypeNoKey:
			log.Fatal().Err(err).Msg("No API key configured. Set CVAT_API_KEY, cvat.api_key or cvat.api_key_ssm_param")
		case auth.ErrTypeInvalidKey:
			log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
		case auth.ErrTypeNetworkError:
			log.Fatal().Err(err).Msg("Network error. Please check the CVAT URL and your connection")
		default:
			log.Fatal().Err(err).Msg("API key validation failed")
		}
	} else {
		log.Fatal().Err(err).Msg("unexpected error during API key validation")
	}
	os.Exit(1)
}
