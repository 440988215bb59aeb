// Package storage opens uploaded churn files from an S3 bucket or a local
// directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// ErrFileNotFound is returned when no object exists under the key.
var ErrFileNotFound = errors.New("file not found")

// FileStore opens stored files by key. Keys are slash separated
// ("<owner>/<file>").
type FileStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LoadAWSConfig builds an SDK config for region, using the shared profile
// when one is named and the default credential chain otherwise.
func LoadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}
