// Package publish implements the versioned publishing sink on top of S3.
// Each run lands under its own key prefix; a "latest" pointer object is
// updated last so readers only ever see complete versions.
package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/HrushiSanap/crypto-top100-automation/internal/domain"
)

type S3Publisher struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	log      *zap.Logger
}

// NewS3Publisher builds a publisher using the default AWS credential
// chain (environment, shared config, instance role).
func NewS3Publisher(ctx context.Context, bucket, prefix string, log *zap.Logger) (*S3Publisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, &domain.PublishError{Target: bucket, Err: err}
	}
	client := s3.NewFromConfig(cfg)

	return &S3Publisher{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		log:      log,
	}, nil
}

// Publish uploads every file in dir under a version prefix derived from
// the manifest's generation timestamp, then moves the "latest" pointer.
// A failure here is reported to the caller but the local dataset stays
// finalized and valid.
func (p *S3Publisher) Publish(ctx context.Context, dir string, m *domain.DatasetManifest) error {
	version := m.GeneratedAt.UTC().Format("20060102T150405Z")
	versionPrefix := p.prefix + "/" + version

	entries, err := os.ReadDir(dir)
	if err != nil {
		return &domain.PublishError{Target: p.bucket, Err: err}
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := p.uploadFile(ctx, filepath.Join(dir, entry.Name()), versionPrefix+"/"+entry.Name()); err != nil {
			return err
		}
		uploaded++
	}

	// Pointer write goes last; an interrupted publish leaves the
	// previous version visible.
	latestKey := p.prefix + "/latest"
	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(latestKey),
		Body:        strings.NewReader(version + "\n"),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return &domain.PublishError{Target: p.bucket + "/" + latestKey, Err: err}
	}

	p.log.Info("Published dataset version",
		zap.String("bucket", p.bucket),
		zap.String("version", version),
		zap.Int("files", uploaded))
	return nil
}

func (p *S3Publisher) uploadFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return &domain.PublishError{Target: p.bucket + "/" + key, Err: err}
	}
	defer f.Close()

	contentType := "text/csv"
	if strings.HasSuffix(path, ".json") {
		contentType = "application/json"
	}

	_, err = p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return &domain.PublishError{Target: p.bucket + "/" + key, Err: err}
	}
	return nil
}
