package media

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = body
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String("etag")}, nil
}

func (f *fakeBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3SaveRemove(t *testing.T) {
	bucket := newFakeBucket()
	s := NewS3Store(bucket, "dolls", "https://cdn.example.com/%s")
	ctx := context.Background()

	key, err := s.Save(ctx, strings.NewReader("glb"), "bella.glb", Model)
	require.NoError(t, err)
	assert.Equal(t, []byte("glb"), bucket.objects[key])
	assert.Equal(t, "model/gltf-binary", bucket.types[key])
	assert.Equal(t, "https://cdn.example.com/"+key, s.URL(key))

	require.NoError(t, s.Remove(ctx, key))
	assert.NotContains(t, bucket.objects, key)
}

func TestS3RejectsBeforeUpload(t *testing.T) {
	bucket := newFakeBucket()
	s := NewS3Store(bucket, "dolls", "https://cdn.example.com")
	tiny := Category{Extensions: []string{".mp4"}, MaxBytes: 2, Label: "video"}

	_, err := s.SaveAs(context.Background(), strings.NewReader("too big"), VideosDir, "a.mp4", tiny)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, bucket.objects)

	key, err := s.SaveAs(context.Background(), strings.NewReader("ok"), VideosDir, "my video.mp4", tiny)
	require.NoError(t, err)
	assert.Equal(t, "videos/my_video.mp4", key)
	assert.Equal(t, "https://cdn.example.com/videos/my_video.mp4", s.URL(key))
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://x.dev/a%20b.glb", CleanURL("https://x.dev/a b.glb"))
}
