package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
)

const (
	// MaxImageSize is the largest accepted upload.
	MaxImageSize int64 = 5 << 20
	// UploadsPath is the public URL prefix uploaded images are served under.
	UploadsPath = "/uploads/"

	msgImageType = "Image must be a jpeg, png or gif file"
	msgImageSize = "Image must not exceed 5MB"
	msgNoFile    = "File not found"
)

// allowedImageTypes maps sniffed MIME types to the extensions accepted for them.
// The first extension is used when the original name carries none of them.
var allowedImageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
}

// Images validates uploaded images and writes them to storage.
type Images struct {
	storage model.Storage
	maxSize int64
	newID   func() string
	logger  *logger.Logger
}

// NewImages creates the image intake on top of an already initialized storage.
func NewImages(storage model.Storage, logger *logger.Logger) *Images {
	return &Images{
		storage: storage,
		maxSize: MaxImageSize,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Accept checks the upload's sniffed type and size, stores it as
// {random id}-{sanitized name}, and returns its public path. Rejected uploads
// never reach storage.
func (i *Images) Accept(ctx context.Context, up model.Upload) (string, error) {
	if up.Size > i.maxSize {
		return "", model.NewValidationError(msgImageSize)
	}

	data, err := io.ReadAll(io.LimitReader(up.Reader, i.maxSize+1))
	if err != nil {
		i.logger.Error("Image intake: failed to read upload", "name", up.Name, "error", err.Error())
		return "", model.NewInternalError(err)
	}
	if int64(len(data)) > i.maxSize {
		return "", model.NewValidationError(msgImageSize)
	}

	exts, ok := allowedImageTypes[http.DetectContentType(data)]
	if !ok {
		return "", model.NewValidationError(msgImageType)
	}

	filename := i.newID() + "-" + SafeFilename(up.Name, exts)
	if err := i.storage.Upload(ctx, filename, bytes.NewReader(data)); err != nil {
		i.logger.Error("Image intake: failed to store upload", "filename", filename, "error", err.Error())
		return "", model.NewInternalError(err)
	}

	i.logger.Debug("Image intake: stored upload", "filename", filename, "size", len(data))
	return UploadsPath + filename, nil
}

// Open returns a reader for a stored upload and its content type, derived from
// the file extension.
func (i *Images) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return nil, "", model.NewNotFoundError(msgNoFile)
	}
	rc, err := i.storage.Download(ctx, filename)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", model.NewNotFoundError(msgNoFile)
		}
		i.logger.Error("Image intake: failed to open upload", "filename", filename, "error", err.Error())
		return nil, "", model.NewInternalError(fmt.Errorf("open %s: %w", filename, err))
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

// Discard removes an image stored by Accept. It is used when the post that
// would reference the image could not be saved. Failures are only logged.
func (i *Images) Discard(ctx context.Context, path string) {
	filename := strings.TrimPrefix(path, UploadsPath)
	if filename == "" || filename == path {
		return
	}
	if err := i.storage.Delete(ctx, filename); err != nil {
		i.logger.Warn("Image intake: failed to discard upload", "filename", filename, "error", err.Error())
	}
}

// SafeFilename reduces a client-supplied filename to a slug stem and an
// extension from exts. Directory parts are dropped. An extension not in
// exts is replaced by exts[0].
func SafeFilename(name string, exts []string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "image"
	}
	for _, e := range exts {
		if ext == e {
			return stem + ext
		}
	}
	if len(exts) == 0 {
		return stem + ext
	}
	return stem + exts[0]
}

// Slugify converts a string to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
