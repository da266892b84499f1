package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// APIKeyEnvVar overrides every other API key source.
const APIKeyEnvVar = "CVAT_API_KEY"

// ParameterGetter is the subset of the SSM client used to fetch the key.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Source describes where an API key came from, for logging only.
type Source string

const (
	SourceEnv    Source = "env"
	SourceConfig Source = "config"
	SourceSSM    Source = "ssm"
)

// GetAPIKey retrieves the CVAT API key from available sources.
// Priority order:
//  1. CVAT_API_KEY environment variable
//  2. configKey (the cvat.api_key configuration value)
//  3. the SSM parameter ssmParam, when both it and ssmClient are set
func GetAPIKey(ctx context.Context, configKey, ssmParam string, ssmClient ParameterGetter) (string, Source, error) {
	if key := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, SourceEnv, nil
	}

	if key := strings.TrimSpace(configKey); key != "" {
		log.Debug().Msg("Using API key from configuration file")
		return key, SourceConfig, nil
	}

	if ssmParam != "" && ssmClient != nil {
		key, err := getFromSSM(ctx, ssmClient, ssmParam)
		if err != nil {
			return "", "", &ValidationError{Type: ErrTypeNoKey, Message: "failed to read API key from SSM", Err: err}
		}
		log.Debug().Str("param", ssmParam).Msg("Using API key from SSM")
		return key, SourceSSM, nil
	}

	return "", "", &ValidationError{
		Type:    ErrTypeNoKey,
		Message: fmt.Sprintf("API key not found. Set %s, cvat.api_key, or cvat.api_key_ssm_param", APIKeyEnvVar),
	}
}

// getFromSSM reads and decrypts a SecureString parameter.
func getFromSSM(ctx context.Context, client ParameterGetter, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", errors.New("parameter " + name + " is empty")
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}
