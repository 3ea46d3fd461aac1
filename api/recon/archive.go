package recon

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Original statement files are archived to S3 keyed by content hash, so a
// disputed reconciliation can always be traced back to the exact bytes the
// property uploaded. Archive failures are logged, never fatal to an import.

const (
	archiveDefaultRegion = "ap-southeast-1"
	archivePrefix        = "statements/"
)

func archiveBucket() string {
	if b := strings.TrimSpace(os.Getenv("RECON_S3_BUCKET")); b != "" {
		return b
	}
	return "stayledger-statements"
}

func archiveRegion() string {
	if r := strings.TrimSpace(os.Getenv("RECON_S3_REGION")); r != "" {
		return r
	}
	return archiveDefaultRegion
}

// IsArchiveEnabled reads RECON_S3_ENABLED. Defaults to disabled so local
// setups without AWS credentials import cleanly.
func IsArchiveEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("RECON_S3_ENABLED")))
	return v == "1" || v == "true" || v == "yes"
}

func sanitizePathSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(s)
}

// BuildArchiveKey addresses the archived file by property and content hash.
func BuildArchiveKey(propertyID, fileHash, fileExt string) string {
	ext := strings.TrimSpace(fileExt)
	if ext == "" {
		ext = ".bin"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s%s/%s%s", archivePrefix, sanitizePathSegment(propertyID), fileHash, ext)
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) > 512 {
		return http.DetectContentType(data[:512])
	}
	return http.DetectContentType(data)
}

// ArchiveStatement uploads the raw statement bytes to the archive bucket and
// returns the object key.
func ArchiveStatement(ctx context.Context, key string, body []byte) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(archiveRegion()))
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(archiveBucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(detectContentType(body)),
	})
	if err != nil {
		return "", fmt.Errorf("archive to s3 (bucket %s, key %s): %w", archiveBucket(), key, err)
	}
	return key, nil
}
