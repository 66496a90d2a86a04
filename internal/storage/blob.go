package storage

import (
	"errors"
	"io"
)

// ErrBadKey is returned for keys that are empty or escape the store root.
var ErrBadKey = errors.New("storage: bad key")

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}
