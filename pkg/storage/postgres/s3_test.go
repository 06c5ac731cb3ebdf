package postgres

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/apidelta/pkg/storage"
)

// memoryObjects is an in-memory ObjectAPI
type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
	down    bool
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.types[*in.Key] = *in.ContentType
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memoryObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *memoryObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *memoryObjects) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.down {
		return nil, errors.New("connection refused")
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestArchiveKeys(t *testing.T) {
	assert.Equal(t, "baselines/release-1/abc.yaml", BaselineArchiveKey("release-1", "abc"))
	assert.Equal(t, "reports/42.json.zst", ReportArchiveKey("42"))
}

func TestS3Client_Objects(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	client := NewS3ClientWithAPI(objects, "bucket")

	require.NoError(t, client.PutObject(ctx, "a/b", []byte("hello"), "text/plain"))
	exists, err := client.ObjectExists(ctx, "a/b")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := client.GetObject(ctx, "a/b")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, client.DeleteObject(ctx, "a/b"))
	exists, err = client.ObjectExists(ctx, "a/b")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.GetObject(ctx, "a/b")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.NoError(t, client.HealthCheck(ctx))
	objects.down = true
	assert.Error(t, client.HealthCheck(ctx))
}

func TestS3Client_ArchiveBaselineDeduplicates(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	client := NewS3ClientWithAPI(objects, "bucket")

	_, info, err := storage.Encode(sampleDoc("r1", "1.0.0"))
	require.NoError(t, err)

	key, err := client.ArchiveBaseline(ctx, info, []byte("doc"))
	require.NoError(t, err)
	assert.Equal(t, BaselineArchiveKey("r1", info.Fingerprint), key)
	_, err = client.ArchiveBaseline(ctx, info, []byte("doc"))
	require.NoError(t, err)
	assert.Equal(t, 1, objects.puts)
	assert.Equal(t, "application/yaml", objects.types[key])
}

func TestS3Client_ArchiveReport(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	client := NewS3ClientWithAPI(objects, "bucket")

	r := sampleReport("a", "b", time.Now().UTC())
	key, err := client.ArchiveReport(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "application/zstd", objects.types[key])
	assert.True(t, bytes.HasPrefix(objects.objects[key], []byte{0x28, 0xb5, 0x2f, 0xfd}), "zstd frame")

	got, err := client.GetArchivedReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, r.Before, got.Before)

	_, err = client.GetArchivedReport(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = decompressReport([]byte("not zstd"))
	assert.Error(t, err)
}

func TestPostgresStorage_Archives(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	s := newSQLiteStorage(t, WithS3(NewS3ClientWithAPI(objects, "bucket")))

	info, err := s.PutBaseline(ctx, sampleDoc("r1", "1.0.0"))
	require.NoError(t, err)
	assert.Contains(t, objects.objects, BaselineArchiveKey("r1", info.Fingerprint))

	r := sampleReport("r1", "r1", time.Now().UTC())
	require.NoError(t, s.SaveReport(ctx, r))
	assert.Contains(t, objects.objects, ReportArchiveKey(r.ID))

	require.NoError(t, s.HealthCheck(ctx))
	objects.down = true
	assert.ErrorContains(t, s.HealthCheck(ctx), "s3 unhealthy")
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(&types.NotFound{}))
	assert.False(t, isNotFoundError(errors.New("NoSuchKey")))
	assert.False(t, isNotFoundError(nil))
	assert.True(t, isBucketAlreadyExistsError(&types.BucketAlreadyOwnedByYou{}))
	assert.False(t, isBucketAlreadyExistsError(errors.New("boom")))
}
