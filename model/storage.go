package model

import (
	"context"
	"io"
)

// Storage is the blob backend for uploaded images.
type Storage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload is an incoming image file.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}
