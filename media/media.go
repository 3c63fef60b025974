// Package media stores check-in and check-out evidence by path.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Kind classifies a job media artifact.
type Kind string

const (
	KindCheckInPhoto  Kind = "checkin_photo"
	KindCheckOutPhoto Kind = "checkout_photo"
	KindCheckOutVideo Kind = "checkout_video"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCheckInPhoto, KindCheckOutPhoto, KindCheckOutVideo:
		return true
	}
	return false
}

// Path returns the storage path "jobs/{jobID}/{kind}/{name}". Directory
// components in name are dropped.
func Path(jobID id.JobID, kind Kind, name string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("media: unknown kind %q", kind)
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("media: invalid file name %q", name)
	}
	return path.Join("jobs", jobID.String(), string(kind), base), nil
}

// BelongsTo reports whether p is a media path of the given job and kind.
func BelongsTo(p string, jobID id.JobID, kind Kind) bool {
	prefix := path.Join("jobs", jobID.String(), string(kind)) + "/"
	return strings.HasPrefix(p, prefix) && len(p) > len(prefix)
}

// Storage stores blobs by path and resolves them to retrievable URLs.
type Storage interface {
	Upload(ctx context.Context, p, contentType string, r io.Reader) error
	URL(ctx context.Context, p string) (string, error)
	Exists(ctx context.Context, p string) (bool, error)
}

// Memory is an in-process Storage for tests and development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	// BaseURL prefixes resolved URLs. Defaults to "memory://".
	BaseURL string
}

var _ Storage = (*Memory)(nil)

// NewMemory creates an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		BaseURL: "memory://",
	}
}

// Upload stores the contents of r at p.
func (m *Memory) Upload(_ context.Context, p, contentType string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("media/memory: upload %s: %w", p, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[p] = buf.Bytes()
	m.types[p] = contentType
	return nil
}

// URL returns BaseURL+p for stored objects.
func (m *Memory) URL(_ context.Context, p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[p]; !ok {
		return "", fmt.Errorf("%s: %w", p, fieldwork.ErrMediaNotFound)
	}
	return m.BaseURL + p, nil
}

// Exists reports whether p has been uploaded.
func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[p]
	return ok, nil
}

// Bytes returns a copy of the stored object.
func (m *Memory) Bytes(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[p]
	return bytes.Clone(b), ok
}
