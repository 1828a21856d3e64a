package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
	"github.com/eringen/inkpost/storage/local"
	"github.com/eringen/inkpost/store"
	"github.com/eringen/inkpost/token"
)

type testEnv struct {
	store     *store.Store
	uploadDir string
	tokens    *token.JWT
	auth      *Auth
	images    *Images
	posts     *Posts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	s, err := store.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	storage, err := local.New(uploadDir)
	require.NoError(t, err)

	log := logger.Nop()
	tokens := token.NewJWT("test-secret", time.Hour)
	images := NewImages(storage, log)

	return &testEnv{
		store:     s,
		uploadDir: uploadDir,
		tokens:    tokens,
		auth:      NewAuth(s, tokens, log, bcrypt.MinCost),
		images:    images,
		posts:     NewPosts(s, s, images, log),
	}
}

func (e *testEnv) register(t *testing.T, email string) model.PublicUser {
	t.Helper()
	u, err := e.auth.Register(context.Background(), "User", email, "secret123")
	require.NoError(t, err)
	return u
}

func (e *testEnv) uploadedFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(e.uploadDir)
	require.NoError(t, err)
	return entries
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func upload(name string, data []byte) *model.Upload {
	return &model.Upload{Name: name, Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func ptr[T any](v T) *T {
	return &v
}
