package filesource

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CMSgov/xc-harvester/harvester/oai"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type S3Config struct {
	Region        string        `conf:"AWS_REGION" conf_default:"us-east-1"`
	Endpoint      string        `conf:"HARVEST_S3_ENDPOINT"`
	AssumeRoleArn string        `conf:"HARVEST_S3_ASSUME_ROLE_ARN"`
	ListRetries   uint64        `conf:"HARVEST_S3_LIST_RETRIES" conf_default:"3"`
	RetryInterval time.Duration `conf:"HARVEST_S3_RETRY_INTERVAL" conf_default:"1s"`
}

// NewS3 harvests the .xml objects under an s3://bucket/prefix URI.
func NewS3(uri string, cfg S3Config, logger logrus.FieldLogger) (oai.PageSource, error) {
	sess, err := createSession(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create S3 session")
	}
	return newS3Source(uri, s3.New(sess), cfg, logger), nil
}

func newS3Source(uri string, svc s3iface.S3API, cfg S3Config, logger logrus.FieldLogger) oai.PageSource {
	bucket, prefix := parseS3Uri(uri)
	return &pager{
		store: &s3Store{
			bucket: bucket,
			prefix: prefix,
			svc:    svc,
			cfg:    cfg,
			log:    logger,
		},
		log: logger,
	}
}

type s3Store struct {
	bucket string
	prefix string
	svc    s3iface.S3API
	cfg    S3Config
	log    logrus.FieldLogger
}

func (s *s3Store) list(ctx context.Context) ([]string, error) {
	s.log.Infof("Listing objects in bucket %s, prefix %s", s.bucket, s.prefix)

	var keys []string
	op := func() error {
		keys = keys[:0]
		return s.svc.ListObjectsPagesWithContext(ctx, &s3.ListObjectsInput{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(s.prefix),
		}, func(out *s3.ListObjectsOutput, _ bool) bool {
			for _, obj := range out.Contents {
				keys = append(keys, aws.StringValue(obj.Key))
			}
			return true
		})
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryInterval), s.cfg.ListRetries), ctx)
	notify := func(err error, d time.Duration) {
		s.log.Warnf("Failed to list objects in S3 bucket %s, prefix %s, retrying in %s: %s", s.bucket, s.prefix, d, err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, errors.Wrapf(err, "failed to list objects in S3 bucket %s, prefix %s", s.bucket, s.prefix)
	}
	return keys, nil
}

func (s *s3Store) read(ctx context.Context, key string) ([]byte, error) {
	downloader := s3manager.NewDownloaderWithClient(s.svc)
	buff := &aws.WriteAtBuffer{}
	n, err := downloader.DownloadWithContext(ctx, buff, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Errorf("Failed to download bucket %s, key %s", s.bucket, key)
		return nil, err
	}
	s.log.Debugf("file downloaded: key=%s size=%d", key, n)
	return buff.Bytes(), nil
}

func (s *s3Store) describe(key string) string {
	if key == "" {
		key = s.prefix
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func createSession(cfg S3Config) (*session.Session, error) {
	sess := session.Must(session.NewSession())

	config := aws.Config{
		Region: aws.String(cfg.Region),
	}

	if cfg.Endpoint != "" {
		config.S3ForcePathStyle = aws.Bool(true)
		config.Endpoint = aws.String(cfg.Endpoint)
	}

	if cfg.AssumeRoleArn != "" {
		config.Credentials = stscreds.NewCredentials(sess, cfg.AssumeRoleArn)
	}

	return session.NewSessionWithOptions(session.Options{
		Config: config,
	})
}

func parseS3Uri(str string) (bucket string, prefix string) {
	parts := strings.SplitN(strings.TrimPrefix(str, "s3://"), "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
