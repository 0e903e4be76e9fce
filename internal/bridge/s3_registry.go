package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/obcmarine/bridgegap/internal/models"
)

// S3Client defines the interface for the S3 operations we need
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

const registryKey = "bridges.json"

// registryRecord is the S3 object layout: the bridge list plus freshness
// metadata written by whoever maintains the configuration.
type registryRecord struct {
	Bridges     []models.BridgeConfig `json:"bridges"`
	LastUpdated int64                 `json:"lastUpdated"`
	TTL         int64                 `json:"ttl"`
}

// S3Registry loads bridge configuration from an S3 object, falling back to
// the built-in defaults when the bucket is unset, unreachable or expired.
// Bridge geometry changes on the timescale of construction projects, so a
// missing object is routine, not an error.
//
// Freshness comes from two places: the object's own ttl deadline when set,
// and otherwise maxAge measured from lastUpdated.
type S3Registry struct {
	client     S3Client
	bucketName string
	maxAge     time.Duration
}

func NewS3Registry(client S3Client, bucketName string, maxAge time.Duration) *S3Registry {
	return &S3Registry{client: client, bucketName: bucketName, maxAge: maxAge}
}

// NewS3RegistryFromEnv builds the loader from AWS default config and the
// BRIDGE_CONFIG_BUCKET variable. An empty variable yields a loader that
// always falls back to defaults.
func NewS3RegistryFromEnv(ctx context.Context, maxAge time.Duration) (*S3Registry, error) {
	bucket := os.Getenv("BRIDGE_CONFIG_BUCKET")
	if bucket == "" {
		return &S3Registry{maxAge: maxAge}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Registry{client: s3.NewFromConfig(cfg), bucketName: bucket, maxAge: maxAge}, nil
}

// Load returns a registry from S3 when a valid record exists, otherwise the
// built-in defaults.
func (r *S3Registry) Load(ctx context.Context) *Registry {
	bridges, err := r.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to built-in bridge configuration")
		return NewRegistry()
	}
	if bridges == nil {
		return NewRegistry()
	}
	return NewRegistry(bridges...)
}

func (r *S3Registry) fetch(ctx context.Context) ([]models.BridgeConfig, error) {
	if r.client == nil || r.bucketName == "" {
		return nil, nil
	}

	result, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(registryKey),
	})
	if err != nil {
		// Object absent: use defaults without complaint.
		return nil, nil
	}
	defer func(body io.ReadCloser) {
		if closeErr := body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Error closing S3 object body")
		}
	}(result.Body)

	var record registryRecord
	if err := json.NewDecoder(result.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding bridge registry record: %w", err)
	}

	now := time.Now().Unix()
	switch {
	case record.TTL > 0 && now > record.TTL:
		log.Debug().Msg("Bridge registry object past its ttl deadline")
		return nil, nil
	case record.TTL == 0 && r.maxAge > 0 && record.LastUpdated > 0 &&
		now > record.LastUpdated+int64(r.maxAge.Seconds()):
		log.Debug().Msg("Bridge registry object older than the configured maximum age")
		return nil, nil
	}
	if len(record.Bridges) == 0 {
		return nil, nil
	}

	log.Debug().Int("bridges", len(record.Bridges)).Msg("Loaded bridge registry from S3")
	return record.Bridges, nil
}
