package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/storage"
)

type fakeS3 struct {
	objects map[string]string
	puts    map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

type recordingImporter struct {
	listID, body string
}

func (r *recordingImporter) ImportCSVWithID(_ context.Context, importID, listID string, src io.Reader) (*domain.ImportSummary, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	r.listID, r.body = listID, string(b)
	return &domain.ImportSummary{ImportID: importID, NewlyAdded: 2, TotalCSVRows: 2}, nil
}

func TestS3Source_Import(t *testing.T) {
	fake := &fakeS3{
		objects: map[string]string{"uploads/lists/2024/members.csv": "email\na@x.com\nb@x.com\n"},
		puts:    map[string][]byte{},
	}
	imp := &recordingImporter{}
	src := storage.NewS3SourceWithClient(fake, "uploads", imp)

	sum, err := src.Import(context.Background(), "list-1", "", "lists/2024/members.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.NewlyAdded)
	assert.Equal(t, "list-1", imp.listID)
	assert.Equal(t, "email\na@x.com\nb@x.com\n", imp.body)

	archived, ok := fake.puts["uploads/lists/2024/members.summary.json"]
	require.True(t, ok)
	var got domain.ImportSummary
	require.NoError(t, json.Unmarshal(archived, &got))
	assert.Equal(t, sum.ImportID, got.ImportID)
}

func TestS3Source_Errors(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, puts: map[string][]byte{}}
	src := storage.NewS3SourceWithClient(fake, "", &recordingImporter{})

	_, err := src.Import(context.Background(), "list-1", "", "k.csv")
	assert.ErrorIs(t, err, storage.ErrBucketRequired)

	_, err = src.Import(context.Background(), "list-1", "b", "missing.csv")
	assert.ErrorContains(t, err, "NoSuchKey")
}
