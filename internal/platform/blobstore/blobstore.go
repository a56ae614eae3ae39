// Package blobstore stores identification documents uploaded during patient
// registration. It defines the BlobStore interface, an in-memory store for
// tests and development, a directory-backed bucket, and the download handler.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrEmptyFile          = errors.New("file is empty")
)

// MaxFileSize is the maximum allowed blob size in bytes (5 MiB).
const MaxFileSize = 5 * 1024 * 1024

// AllowedContentTypes maps accepted MIME types to their file extensions.
var AllowedContentTypes = map[string][]string{
	"application/pdf": {".pdf"},
	"image/png":       {".png"},
	"image/jpeg":      {".jpg", ".jpeg"},
}

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	ID          string    `json:"id"`
	Bucket      string    `json:"bucket"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BlobStore defines the contract for blob storage backends.
type BlobStore interface {
	Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, id string) error
	GetMetadata(ctx context.Context, id string) (*BlobMetadata, error)
}

// prepare reads content, enforces the size limit and the allowed types, and
// fills the generated metadata fields. The declared content type must agree
// with both the file extension and the sniffed bytes.
func prepare(meta BlobMetadata, content io.Reader) (BlobMetadata, []byte, error) {
	meta.FileName = filepath.Base(strings.TrimSpace(meta.FileName))
	if meta.FileName == "" || meta.FileName == "." || meta.FileName == string(filepath.Separator) {
		return meta, nil, ErrMissingFileName
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return meta, nil, ErrEmptyFile
	}

	contentType, err := resolveContentType(meta.FileName, meta.ContentType, data)
	if err != nil {
		return meta, nil, err
	}

	h := sha256.Sum256(data)
	meta.ID = uuid.New().String()
	meta.ContentType = contentType
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

func resolveContentType(fileName, declared string, data []byte) (string, error) {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			declared = mt
		}
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))

	contentType := declared
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffed
	}

	exts, ok := AllowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	if sniffed != contentType {
		return "", fmt.Errorf("%w: content looks like %s", ErrInvalidContentType, sniffed)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, allowed := range exts {
		if ext == allowed {
			return contentType, nil
		}
	}
	return "", fmt.Errorf("%w: extension %q does not match %s", ErrInvalidContentType, ext, contentType)
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	bucket string
	mu     sync.RWMutex
	blobs  map[string]*storedBlob
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore(bucket string) *InMemoryBlobStore {
	return &InMemoryBlobStore{
		bucket: bucket,
		blobs:  make(map[string]*storedBlob),
	}
}

func (s *InMemoryBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	meta.Bucket = s.bucket

	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Download(_ context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[id]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}

func (s *InMemoryBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}

	meta := blob.metadata
	return &meta, nil
}

// Len returns the number of stored blobs.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// URLFor builds the public download URL of a blob.
func URLFor(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/files/" + id
}
