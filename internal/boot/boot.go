// Package boot provides the shared startup wiring for every command: AWS
// config (including static credentials and Cloudflare R2 endpoints), the S3
// client, the optional DynamoDB snapshot table, and the SSM client used to
// load the platform API key.
package boot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/auth"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/store"
)

const (
	// r2Region is the region name Cloudflare R2 expects.
	r2Region = "auto"
	// defaultRegion is used when neither the file nor the environment sets one.
	defaultRegion = "us-east-1"
)

// R2Endpoint returns the S3 API endpoint of a Cloudflare R2 account.
func R2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

// Endpoint resolves the custom S3 endpoint for cfg: an explicit endpoint_url
// wins, then an R2 account id. Empty means the AWS default.
func Endpoint(cfg config.S3Config) string {
	if cfg.EndpointURL != "" {
		return cfg.EndpointURL
	}
	if cfg.AccountID != "" {
		return R2Endpoint(cfg.AccountID)
	}
	return ""
}

// Region resolves the signing region for cfg.
func Region(cfg config.S3Config) string {
	switch {
	case cfg.Region != "":
		return cfg.Region
	case cfg.AccountID != "":
		return r2Region
	}
	return ""
}

// LoadAWSConfig loads the AWS SDK config. Static keys from the file take
// precedence over the default credential chain.
func LoadAWSConfig(ctx context.Context, cfg config.S3Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region := Region(cfg); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}
	log.Debug().Str("region", awsCfg.Region).Msg("AWS config loaded")
	return awsCfg, nil
}

// NewS3 creates an S3 client, pointed at the custom endpoint when one is
// configured. Custom endpoints use path-style addressing.
func NewS3(awsCfg aws.Config, cfg config.S3Config) *s3.Client {
	endpoint := Endpoint(cfg)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewSSM creates an SSM client.
func NewSSM(awsCfg aws.Config) *ssm.Client {
	return ssm.NewFromConfig(awsCfg)
}

// LoadAPIKey resolves the platform API key. The SSM client is only created
// when neither the environment nor the file supplies a key.
func LoadAPIKey(ctx context.Context, cfg *config.Config) (string, auth.Source, error) {
	var getter auth.ParameterGetter
	if cfg.CVAT.APIKeySSMParam != "" && cfg.CVAT.APIKey == "" {
		awsCfg, err := LoadAWSConfig(ctx, config.S3Config{Region: cfg.S3.Region})
		if err != nil {
			return "", "", err
		}
		getter = NewSSM(awsCfg)
	}
	return auth.GetAPIKey(ctx, cfg.CVAT.APIKey, cfg.CVAT.APIKeySSMParam, getter)
}

// NewSnapshotStore returns the snapshot backend selected by the
// configuration. The DynamoDB backend requires snapshot.table.
func NewSnapshotStore(ctx context.Context, cfg *config.Config, dir string) (store.SnapshotStore, error) {
	if cfg.Snapshot.Backend != config.SnapshotBackendDynamo {
		return store.NewFileSnapshotStore(dir), nil
	}
	if cfg.Snapshot.Table == "" {
		return nil, &config.Error{Path: cfg.Path(), Key: "snapshot.table"}
	}
	awsCfg, err := LoadAWSConfig(ctx, config.S3Config{Region: cfg.S3.Region})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("table", cfg.Snapshot.Table).Msg("Using DynamoDB snapshot store")
	return store.NewDynamoSnapshotStore(dynamodb.NewFromConfig(awsCfg), cfg.Snapshot.Table), nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
