package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DiskBlobStore keeps each blob as two files under <dir>/<bucket>: the
// content named by its id and a "<id>.json" metadata sidecar.
type DiskBlobStore struct {
	bucket string
	root   string
}

// NewDiskBlobStore creates the bucket directory if needed.
func NewDiskBlobStore(dir, bucket string) (*DiskBlobStore, error) {
	root := filepath.Join(dir, bucket)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create bucket directory %s: %w", root, err)
	}
	return &DiskBlobStore{bucket: bucket, root: root}, nil
}

func (s *DiskBlobStore) paths(id string) (string, string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", "", ErrBlobNotFound
	}
	return filepath.Join(s.root, id), filepath.Join(s.root, id+".json"), nil
}

func (s *DiskBlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	meta.Bucket = s.bucket

	dataPath, metaPath, err := s.paths(meta.ID)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	if err := writeFileAtomic(dataPath, data); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(metaPath, encoded); err != nil {
		_ = os.Remove(dataPath)
		return nil, err
	}

	out := meta
	return &out, nil
}

func (s *DiskBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	dataPath, _, _ := s.paths(id)
	data, err := os.ReadFile(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

func (s *DiskBlobStore) Delete(_ context.Context, id string) error {
	dataPath, metaPath, err := s.paths(id)
	if err != nil {
		return err
	}
	if err := os.Remove(metaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("delete blob metadata %s: %w", id, err)
	}
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func (s *DiskBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	_, metaPath, err := s.paths(id)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("read blob metadata %s: %w", id, err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode blob metadata %s: %w", id, err)
	}
	return &meta, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
