// Package storage provides the blob storage abstraction the CLI uses to
// fetch s3:// inputs and publish outputs.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
)

// ObjectStorage abstracts blob get/put operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath in storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download fetches objectPath from storage into localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists checks whether an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)
}
