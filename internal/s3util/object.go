package s3util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectGetter is the read subset of *s3.Client.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client combines listing and reads, as satisfied by *s3.Client.
type Client interface {
	Lister
	ObjectGetter
}

// GetBytes reads a whole object into memory.
func GetBytes(ctx context.Context, client ObjectGetter, bucket, key string) ([]byte, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Reading object")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// GetJSON reads an object and unmarshals it into a value of type T.
func GetJSON[T any](ctx context.Context, client ObjectGetter, bucket, key string) (T, error) {
	var zero T
	data, err := GetBytes(ctx, client, bucket, key)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}
