package config

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/LazuliKao/SFTPServer/internal/logger"
	"github.com/LazuliKao/SFTPServer/pkg/backend"
	"github.com/LazuliKao/SFTPServer/pkg/backend/badgerfs"
	"github.com/LazuliKao/SFTPServer/pkg/backend/local"
	"github.com/LazuliKao/SFTPServer/pkg/backend/memory"
	"github.com/LazuliKao/SFTPServer/pkg/backend/s3fs"
)

// CreateBackend builds the storage backend selected by cfg.Type, decoding
// the matching type-specific option map.
//
// The returned cleanup function releases backend resources at shutdown and
// is never nil.
func CreateBackend(ctx context.Context, cfg *StorageConfig) (backend.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Type {
	case "local":
		b, err := createLocalBackend(cfg.Local)
		return b, noop, err
	case "memory":
		return memory.New(), noop, nil
	case "badger":
		return createBadgerBackend(cfg.Badger)
	case "s3":
		b, err := createS3Backend(ctx, cfg.S3)
		return b, noop, err
	default:
		return nil, noop, fmt.Errorf("unknown storage backend type: %q", cfg.Type)
	}
}

func createLocalBackend(options map[string]any) (backend.Backend, error) {
	type LocalBackendConfig struct {
		Path string `mapstructure:"path"`
	}

	var cfg LocalBackendConfig
	if err := mapstructure.Decode(options, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode local backend config: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("local backend: path is required")
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("local backend: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local backend: %s is not a directory", cfg.Path)
	}

	logger.Info("Local backend initialized: path=%s", cfg.Path)
	return local.New(cfg.Path), nil
}

func createBadgerBackend(options map[string]any) (backend.Backend, func() error, error) {
	noop := func() error { return nil }

	type BadgerBackendConfig struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var cfg BadgerBackendConfig
	if err := mapstructure.Decode(options, &cfg); err != nil {
		return nil, noop, fmt.Errorf("failed to decode badger backend config: %w", err)
	}
	if cfg.DBPath == "" && !cfg.InMemory {
		return nil, noop, fmt.Errorf("badger backend: db_path is required")
	}

	b, err := badgerfs.New(badgerfs.Options{Path: cfg.DBPath, InMemory: cfg.InMemory})
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open badger backend: %w", err)
	}

	logger.Info("Badger backend initialized: db_path=%s in_memory=%v", cfg.DBPath, cfg.InMemory)
	return b, b.Shutdown, nil
}

func createS3Backend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	type S3BackendConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var cfg S3BackendConfig
	if err := mapstructure.Decode(options, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode s3 backend config: %w", err)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend: bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	// Custom endpoint support covers MinIO and Localstack deployments.
	if cfg.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for S3-compatible endpoints.
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 backend initialized: bucket=%s region=%s prefix=%s", cfg.Bucket, cfg.Region, cfg.KeyPrefix)
	return s3fs.New(client, cfg.Bucket, cfg.KeyPrefix), nil
}
