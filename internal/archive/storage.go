// Package archive mirrors audit rows into object storage as snappy-compressed
// JSON documents.
package archive

import (
	"context"
	"errors"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
)

// ObjectStorage is the subset of object store operations the archive needs.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
