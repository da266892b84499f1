// Package s3util provides the object-storage helpers shared by the commands:
// exhaustive prefix listing, suffix lookups, and JSON object reads. It works
// against AWS S3 and S3-compatible stores such as Cloudflare R2.
package s3util

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Lister is the listing subset of *s3.Client.
type Lister interface {
	s3.ListObjectsV2APIClient
}

// ListKeys returns every object key under prefix, following continuation
// tokens until the listing is exhausted. Listing errors propagate.
func ListKeys(ctx context.Context, client Lister, bucket, prefix string) ([]string, error) {
	var keys []string
	err := walk(ctx, client, bucket, prefix, func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("bucket", bucket).Str("prefix", prefix).Int("keys", len(keys)).Msg("Listed objects")
	return keys, nil
}

// ListKeysWithSuffix returns the keys under prefix ending in suffix.
func ListKeysWithSuffix(ctx context.Context, client Lister, bucket, prefix, suffix string) ([]string, error) {
	var keys []string
	err := walk(ctx, client, bucket, prefix, func(key string) bool {
		if strings.HasSuffix(key, suffix) {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// FindFirstSuffix returns the first key under prefix ending in suffix,
// stopping the listing as soon as one is found.
func FindFirstSuffix(ctx context.Context, client Lister, bucket, prefix, suffix string) (string, bool, error) {
	var found string
	err := walk(ctx, client, bucket, prefix, func(key string) bool {
		if strings.HasSuffix(key, suffix) {
			found = key
			return false
		}
		return true
	})
	if err != nil {
		return "", false, err
	}
	return found, found != "", nil
}

// walk calls fn for each key under prefix until fn returns false.
func walk(ctx context.Context, client Lister, bucket, prefix string, fn func(key string) bool) error {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	pages := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("S3 ListObjectsV2 %s/%s page %d: %w", bucket, prefix, pages+1, err)
		}
		pages++
		for _, obj := range page.Contents {
			if !fn(aws.ToString(obj.Key)) {
				return nil
			}
		}
	}
	return nil
}
