package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

// S3Archive keeps a JSON snapshot of every sent bulletin in an S3 compatible bucket.
type S3Archive struct {
	client s3iface.S3API
	bucket string
}

func NewS3Archive(conf *core.Config) (*S3Archive, error) {
	awsConf := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(conf.Storage.AccessKey, conf.Storage.SecretKey, ""),
		Region:           aws.String(conf.Storage.Region),
		DisableSSL:       aws.Bool(!conf.Storage.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}
	if conf.Storage.Endpoint != "" {
		awsConf.Endpoint = aws.String(conf.Storage.Endpoint)
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return NewS3ArchiveWithClient(s3.New(sess), conf.Storage.Bucket), nil
}

func NewS3ArchiveWithClient(client s3iface.S3API, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

// Key returns the object key of a bulletin snapshot: bulletins/<year>/<class>/<term>/<tracking number>.json
func Key(b bulletin.Bulletin) string {
	name := b.TrackingNumber
	if name == "" {
		name = b.ID
	}
	clean := func(s string) string { return strings.ReplaceAll(strings.TrimSpace(s), "/", "_") }
	return fmt.Sprintf("bulletins/%s/%s/%s/%s.json",
		clean(b.AcademicYearID), clean(b.ClassID), clean(b.TermID), clean(name))
}

// Store uploads the snapshot of b and returns its key.
func (a *S3Archive) Store(ctx context.Context, b bulletin.Bulletin) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", errors.Wrap(err, "encoding bulletin")
	}
	key := Key(b)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"Bulletin-Id":     aws.String(b.ID),
			"Tracking-Number": aws.String(b.TrackingNumber),
			"Security-Hash":   aws.String(b.SecurityHash),
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", key)
	}
	return key, nil
}

// Load reads back an archived snapshot.
func (a *S3Archive) Load(ctx context.Context, key string) (bulletin.Bulletin, error) {
	out, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return bulletin.Bulletin{}, errors.Wrapf(err, "downloading %s", key)
	}
	defer func() { _ = out.Body.Close() }()

	var b bulletin.Bulletin
	if err = json.NewDecoder(out.Body).Decode(&b); err != nil {
		return bulletin.Bulletin{}, errors.Wrap(err, "decoding bulletin")
	}
	return b, nil
}
