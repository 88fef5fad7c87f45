package blog

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// DefaultMediaDir is where uploads are written when not configured
	DefaultMediaDir = "media"
	// DefaultMaxUploadMB caps uploads when not configured
	DefaultMaxUploadMB = 3
	// MediaURLPrefix is the public path stored files are served under
	MediaURLPrefix = "/media"

	megabyte  = 1024 * 1024
	sniffSize = 512
)

// DefaultAllowedTypes lists the image types accepted by default
var DefaultAllowedTypes = []string{"image/png", "image/jpeg"}

var (
	// ErrUnsupportedMediaType the upload is not an allowed image type
	ErrUnsupportedMediaType = goerrors.New("only PNG or JPEG images are allowed", goerrors.CategoryValidation).
				WithCode(http.StatusBadRequest).
				WithTextCode("UNSUPPORTED_MEDIA_TYPE")

	// ErrFileTooLarge the upload exceeds the configured size
	ErrFileTooLarge = goerrors.New("file is too large", goerrors.CategoryValidation).
			WithCode(http.StatusRequestEntityTooLarge).
			WithTextCode("FILE_TOO_LARGE")

	// ErrFileRequired the multipart field is missing
	ErrFileRequired = goerrors.NewValidation("file is required",
		goerrors.FieldError{Field: "file", Message: "cannot be blank"},
	).WithCode(http.StatusBadRequest).WithTextCode("FILE_REQUIRED")
)

// StoredFile describes a saved upload
type StoredFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
	Size        int64  `json:"size,omitempty"`
}

// MediaStore writes validated image uploads to a local directory
type MediaStore struct {
	dir      string
	maxBytes int64
	allowed  []string
	logger   Logger
}

// NewMediaStore creates a store from the upload configuration
func NewMediaStore(cfg UploadConfig, logger Logger) *MediaStore {
	s := &MediaStore{
		dir:      DefaultMediaDir,
		maxBytes: DefaultMaxUploadMB * megabyte,
		allowed:  DefaultAllowedTypes,
		logger:   ensureLogger(logger),
	}

	if cfg == nil {
		return s
	}

	if dir := strings.TrimSpace(cfg.GetMediaDir()); dir != "" {
		s.dir = dir
	}
	if mb := cfg.GetMaxUploadMB(); mb > 0 {
		s.maxBytes = int64(mb) * megabyte
	}
	if types := cfg.GetAllowedTypes(); len(types) > 0 {
		s.allowed = types
	}

	return s
}

// Dir returns the directory files are written to
func (s *MediaStore) Dir() string {
	return s.dir
}

// MaxBytes returns the upload size limit
func (s *MediaStore) MaxBytes() int64 {
	return s.maxBytes
}

// Save stores the upload under a random name keeping its extension.
// The declared content type and the sniffed content must both be
// allowed. Oversized files are removed before returning.
func (s *MediaStore) Save(fh *multipart.FileHeader) (*StoredFile, error) {
	if fh == nil {
		return nil, ErrFileRequired
	}

	declared := mediaType(fh.Header.Get("Content-Type"))
	if !s.isAllowed(declared) {
		return nil, ErrUnsupportedMediaType
	}

	if fh.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read upload").
			WithCode(http.StatusBadRequest)
	}
	defer src.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read upload").
			WithCode(http.StatusBadRequest)
	}
	head = head[:n]

	if !s.isAllowed(mediaType(http.DetectContentType(head))) {
		return nil, ErrUnsupportedMediaType
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create media directory")
	}

	filename := strings.ReplaceAll(uuid.New().String(), "-", "") + safeExt(fh.Filename)
	path := filepath.Join(s.dir, filename)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to create media file")
	}

	size, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), src), s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}

	if err != nil {
		s.remove(path)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to write media file")
	}

	if size > s.maxBytes {
		s.remove(path)
		return nil, ErrFileTooLarge
	}

	s.logger.Info("stored upload", "filename", filename, "size", size, "content_type", declared)

	return &StoredFile{
		Filename:    filename,
		ContentType: declared,
		URL:         MediaURLPrefix + "/" + filename,
		Size:        size,
	}, nil
}

func (s *MediaStore) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove partial upload", "path", path, "error", err)
	}
}

func (s *MediaStore) isAllowed(contentType string) bool {
	return slices.Contains(s.allowed, contentType)
}

func mediaType(contentType string) string {
	contentType, _, _ = strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(contentType))
}

// safeExt keeps a short alphanumeric extension of the client file name
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
