package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(filepath.Join(t.TempDir(), "uploads"), "http://localhost:3001/uploads/")
	require.NoError(t, err)
	return s
}

func TestDiskSaveAndRemove(t *testing.T) {
	s := newDiskStore(t)
	ctx := context.Background()
	content := []byte("glTF-binary-bytes")

	name, err := s.Save(ctx, bytes.NewReader(content), "My Doll.GLB", Model)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, "-My_Doll.GLB"), name)

	got, err := os.ReadFile(filepath.Join(s.Root(), name))
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "http://localhost:3001/uploads/"+name, s.URL(name))

	require.NoError(t, s.Remove(ctx, name))
	_, err = os.Stat(filepath.Join(s.Root(), name))
	assert.True(t, os.IsNotExist(err))

	// idempotent
	assert.NoError(t, s.Remove(ctx, name))
}

func TestDiskSaveGeneratesDistinctNames(t *testing.T) {
	s := newDiskStore(t)
	a, err := s.Save(context.Background(), strings.NewReader("a"), "doll.glb", Model)
	require.NoError(t, err)
	b, err := s.Save(context.Background(), strings.NewReader("b"), "doll.glb", Model)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDiskRejectsWrongExtension(t *testing.T) {
	s := newDiskStore(t)
	_, err := s.Save(context.Background(), strings.NewReader("x"), "doll.obj", Model)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), strings.NewReader("x"), "voice.glb", Audio)
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(context.Background(), strings.NewReader("x"), "voice.webm", Audio)
	assert.NoError(t, err)
}

func TestDiskEnforcesSizeCeiling(t *testing.T) {
	s := newDiskStore(t)
	tiny := Category{Name: "tiny", Extensions: []string{".glb"}, MaxBytes: 4, Label: "GLB"}

	_, err := s.Save(context.Background(), strings.NewReader("12345"), "doll.glb", tiny)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload must not leave files behind")

	_, err = s.Save(context.Background(), strings.NewReader("1234"), "doll.glb", tiny)
	assert.NoError(t, err)
}

func TestDiskSaveAsSanitizes(t *testing.T) {
	s := newDiskStore(t)

	key, err := s.SaveAs(context.Background(), strings.NewReader("mp4"), VideosDir, "../../etc/doll-1.mp4", Video)
	require.NoError(t, err)
	assert.Equal(t, "videos/doll-1.mp4", key)
	_, err = os.Stat(filepath.Join(s.Root(), "videos", "doll-1.mp4"))
	assert.NoError(t, err)

	_, err = s.SaveAs(context.Background(), strings.NewReader("x"), VideosDir, "..", Video)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDiskRemoveRefusesEscape(t *testing.T) {
	s := newDiskStore(t)
	assert.ErrorIs(t, s.Remove(context.Background(), "../outside.glb"), ErrInvalidName)
}

func TestDiskHandlerServesWithContentType(t *testing.T) {
	s := newDiskStore(t)
	name, err := s.Save(context.Background(), strings.NewReader("gltf-json"), "doll.gltf", Model)
	require.NoError(t, err)

	srv := httptest.NewServer(http.StripPrefix("/uploads", s.Handler()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/uploads/" + name)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "model/gltf+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "gltf-json", string(body))

	resp404, err := http.Get(srv.URL + "/uploads/nope.glb")
	require.NoError(t, err)
	resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)

	dirResp, err := http.Get(srv.URL + "/uploads/")
	require.NoError(t, err)
	dirResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, dirResp.StatusCode)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "model/gltf-binary", ContentType("a.GLB"))
	assert.Equal(t, "model/gltf+json", ContentType("a.gltf"))
	assert.Equal(t, "audio/mpeg", ContentType("a.mp3"))
	assert.Equal(t, "video/mp4", ContentType("videos/a.mp4"))
	assert.Equal(t, "application/octet-stream", ContentType("a.unknownext"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "doll_1.glb", SanitizeName("doll 1.glb"))
	assert.Equal(t, "passwd", SanitizeName("/etc/passwd"))
	assert.Equal(t, "", SanitizeName("../"))
	assert.Equal(t, "hidden.glb", SanitizeName(".hidden.glb"))
}
