package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sealtrack/internal/domain"
)

const (
	defaultPrefix = "evidence"
	contentType   = "application/json"
)

// ObjectPutter is the subset of the S3 client the archiver needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Prefix          string
}

// Evidence is the exported record of a completed document.
type Evidence struct {
	Document       domain.Document `json:"document"`
	DocumentHash   string          `json:"document_hash"`
	BlockchainHash string          `json:"blockchain_hash,omitempty"`
	ArchivedAt     time.Time       `json:"archived_at"`
}

type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3 builds an archiver from static credentials when present, falling back
// to the default AWS credential chain. A custom endpoint switches to
// path-style addressing for S3-compatible stores.
func NewS3(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg.Bucket, cfg.Prefix), nil
}

func New(client ObjectPutter, bucket, prefix string) *S3Archiver {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Archive stores the evidence record and returns its s3:// location.
func (a *S3Archiver) Archive(ctx context.Context, doc domain.Document) (string, error) {
	if a == nil || a.client == nil {
		return "", errors.New("archiver is not configured")
	}
	if doc.DocumentHash == nil || *doc.DocumentHash == "" {
		return "", errors.New("document has no fingerprint")
	}
	evidence := Evidence{
		Document:     doc,
		DocumentHash: *doc.DocumentHash,
		ArchivedAt:   a.now().UTC(),
	}
	if doc.BlockchainHash != nil {
		evidence.BlockchainHash = *doc.BlockchainHash
	}
	body, err := json.Marshal(evidence)
	if err != nil {
		return "", err
	}
	key := a.Key(doc.ID, evidence.DocumentHash)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"document-id":   doc.ID,
			"document-hash": evidence.DocumentHash,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put evidence: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}

func (a *S3Archiver) Key(documentID, documentHash string) string {
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, documentID, documentHash)
}
