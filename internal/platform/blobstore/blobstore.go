// Package blobstore stores patient report images (scans, lab photos)
// uploaded by assistants. Objects are addressed by a deterministic key;
// callers persist the returned URL through the REST backend.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound           = errors.New("object not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize caps report images at 10 MB.
const MaxFileSize = 10 * 1024 * 1024

// allowedContentTypes lists the report image formats assistants upload.
var allowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
}

// Object describes one stored report image.
type Object struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Store is the object-storage contract.
type Store interface {
	// Put stores content under key and returns the object descriptor.
	Put(ctx context.Context, key, fileName, contentType string, content io.Reader) (*Object, error)

	// Open returns the content and descriptor for a key.
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)

	// Delete removes an object. Missing keys return ErrNotFound.
	Delete(ctx context.Context, key string) error

	// List returns the objects under a key prefix, oldest first.
	List(ctx context.Context, prefix string) ([]*Object, error)
}

// ReportKey builds the canonical storage key for a patient report image:
// patient_reports/{doctorID}/{phone}/{timestamp}_{filename}.
func ReportKey(doctorID, phone, fileName string, at time.Time) string {
	clean := strings.ReplaceAll(path.Base(fileName), " ", "_")
	return fmt.Sprintf("patient_reports/%s/%s/%d_%s", doctorID, phone, at.Unix(), clean)
}

// ReportPrefix is the key prefix holding one patient's report images.
func ReportPrefix(doctorID, phone string) string {
	return fmt.Sprintf("patient_reports/%s/%s/", doctorID, phone)
}

type storedObject struct {
	object  Object
	content []byte
	seq     int64
}

// MemoryStore is the in-memory Store used by tests and single-node runs.
// URLs point back at this service's download endpoint.
type MemoryStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]*storedObject
	seq     int64
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]*storedObject),
	}
}

func (s *MemoryStore) Put(_ context.Context, key, fileName, contentType string, content io.Reader) (*Object, error) {
	if fileName == "" {
		return nil, ErrMissingFileName
	}
	if !allowedContentTypes[contentType] {
		return nil, ErrInvalidContentType
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	obj := Object{
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		URL:         s.baseURL + "/files/" + key,
		UploadedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.seq++
	s.objects[key] = &storedObject{object: obj, content: data, seq: s.seq}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	stored, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	obj := stored.object
	return io.NopCloser(bytes.NewReader(stored.content)), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*storedObject
	for key, stored := range s.objects {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, stored)
		}
	}
	for i := 1; i < len(matched); i++ {
		for j := i; j > 0 && matched[j].seq < matched[j-1].seq; j-- {
			matched[j], matched[j-1] = matched[j-1], matched[j]
		}
	}

	out := make([]*Object, len(matched))
	for i, stored := range matched {
		obj := stored.object
		out[i] = &obj
	}
	return out, nil
}
