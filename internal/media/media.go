// Package media stores uploaded images and videos on local disk and serves
// them back under /uploads/.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const PathPrefix = "/uploads/"

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
)

var allowedExt = map[string]string{
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".webp": "image",
	".mp4":  "video",
	".mov":  "video",
	".webm": "video",
}

// Kind returns "image" or "video" for an allowed file name, or "" otherwise.
func Kind(filename string) string {
	return allowedExt[strings.ToLower(filepath.Ext(filename))]
}

type Stored struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
}

type Storage struct {
	dir       string
	maxBytes  int64
	publicURL func(string) string
}

// NewStorage creates dir if needed. publicURL maps a stored path such as
// "/uploads/x.jpg" to the URL clients should use.
func NewStorage(dir string, maxBytes int64, publicURL func(string) string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Storage{dir: dir, maxBytes: maxBytes, publicURL: publicURL}, nil
}

func (s *Storage) MaxBytes() int64 { return s.maxBytes }

// Save writes r under a fresh uuid name that keeps the original extension.
func (s *Storage) Save(r io.Reader, filename string) (*Stored, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := allowedExt[ext]
	if !ok {
		return nil, ErrUnsupportedType
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &Stored{
		Name: name,
		URL:  s.publicURL(PathPrefix + name),
		Kind: kind,
		Size: n,
	}, nil
}

// Handler serves stored files. Directory listings are refused.
func (s *Storage) Handler() http.Handler {
	fs := http.StripPrefix(PathPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
