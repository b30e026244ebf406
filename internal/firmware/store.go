// Package firmware fetches the firmware images a TestModel's
// FirmwareSpec.ImageRef names, from local disk or an S3 bucket,
// implementing the optional fetch path SPEC_FULL.md's domain-stack
// wiring calls for. The teacher declares aws-sdk-go-v2/config and
// aws-sdk-go-v2/credentials in its go.mod but never imports them; this
// package is the first thing in this tree to actually exercise that
// dependency.
package firmware

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store fetches a firmware image by reference. A reference with the
// "s3://bucket/key" form is fetched from S3; anything else is treated as
// a path relative to LocalDir (or an absolute path, used as-is).
type Store struct {
	s3Client *s3.Client
	LocalDir string
}

// NewStore builds a Store with an S3 client resolved from the ambient AWS
// config chain (environment, shared config file, EC2/ECS role) — the
// same resolution path aws-sdk-go-v2/config provides the teacher's
// declared-but-unused dependency for. localDir joins relative image
// references; pass "" to treat every non-S3 reference as already
// resolved.
func NewStore(ctx context.Context, localDir string, opts ...func(*awsconfig.LoadOptions) error) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("firmware: load aws config: %w", err)
	}
	return &Store{s3Client: s3.NewFromConfig(cfg), LocalDir: localDir}, nil
}

// Fetch resolves imageRef to its raw image bytes.
func (st *Store) Fetch(ctx context.Context, imageRef string) ([]byte, error) {
	rest, ok := strings.CutPrefix(imageRef, "s3://")
	if ok {
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("firmware: malformed s3 reference %q", imageRef)
		}
		return st.fetchS3(ctx, parts[0], parts[1])
	}
	return st.fetchLocal(imageRef)
}

func (st *Store) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if st.s3Client == nil {
		return nil, fmt.Errorf("firmware: no s3 client configured, cannot fetch s3://%s/%s", bucket, key)
	}
	out, err := st.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("firmware: get s3 object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("firmware: read s3 object body: %w", err)
	}
	return data, nil
}

func (st *Store) fetchLocal(path string) ([]byte, error) {
	resolved := path
	if st.LocalDir != "" && !filepath.IsAbs(path) {
		resolved = filepath.Join(st.LocalDir, path)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("firmware: read local image %q: %w", resolved, err)
	}
	return data, nil
}
