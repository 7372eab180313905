package media

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T, max int64) (*Storage, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewStorage(dir, max, func(p string) string { return "https://cdn.test" + p })
	require.NoError(t, err)
	return s, dir
}

func TestSave(t *testing.T) {
	s, dir := newStorage(t, 1024)

	got, err := s.Save(strings.NewReader("fake png"), "Photo.PNG")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got.Name, ".png"))
	assert.Equal(t, "image", got.Kind)
	assert.Equal(t, int64(8), got.Size)
	assert.Equal(t, "https://cdn.test/uploads/"+got.Name, got.URL)

	data, err := os.ReadFile(filepath.Join(dir, got.Name))
	require.NoError(t, err)
	assert.Equal(t, "fake png", string(data))
}

func TestSave_Rejections(t *testing.T) {
	s, dir := newStorage(t, 4)

	_, err := s.Save(strings.NewReader("x"), "script.sh")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Save(strings.NewReader("too long"), "clip.mp4")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandler(t *testing.T) {
	s, _ := newStorage(t, 1024)
	got, err := s.Save(strings.NewReader("video"), "a.webm")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathPrefix+got.Name, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathPrefix, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "video", Kind("x.MOV"))
	assert.Equal(t, "", Kind("x.gif"))
}
