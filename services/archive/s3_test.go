package archive

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	s3iface.S3API
	mu      sync.Mutex
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Archive(t *testing.T) {
	client := &fakeS3{objects: make(map[string][]byte)}
	a := NewS3ArchiveWithClient(client, "archive")
	ctx := context.Background()

	avg := 14.25
	b := bulletin.Bulletin{
		ID:             "b1",
		StudentID:      "s1",
		ClassID:        "6A",
		TermID:         "T1",
		AcademicYearID: "2025/2026",
		Status:         bulletin.StatusSent,
		GeneralAverage: &avg,
		TrackingNumber: "BUL-2026-ABCDEFGHIJ",
		SecurityHash:   "hash",
		Grades:         []bulletin.Grade{{SubjectID: "math", Grade: 14.25, Coefficient: 2, Points: 28.5}},
	}

	key, err := a.Store(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "bulletins/2025_2026/6A/T1/BUL-2026-ABCDEFGHIJ.json", key)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "application/json", aws.StringValue(client.puts[0].ContentType))
	assert.Equal(t, "hash", aws.StringValue(client.puts[0].Metadata["Security-Hash"]))

	got, err := a.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Grades, got.Grades)
	require.NotNil(t, got.GeneralAverage)
	assert.Equal(t, avg, *got.GeneralAverage)

	_, err = a.Load(ctx, "missing.json")
	assert.Error(t, err)
}

func TestKey_WithoutTrackingNumber(t *testing.T) {
	assert.Equal(t, "bulletins/2025-2026/6A/T1/b1.json",
		Key(bulletin.Bulletin{ID: "b1", ClassID: "6A", TermID: "T1", AcademicYearID: "2025-2026"}))
}
