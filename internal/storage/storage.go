// Package storage archives captured AI responses in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"fithero/planner/internal/domain"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrObjectNotFound = errors.New("object not found in storage")

// Archive stores raw AI payloads so operators can inspect what the model
// actually returned after the plan row itself has been superseded or deleted.
type Archive interface {
	PutObject(ctx context.Context, objectKey string, body []byte, contentType string) error

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	DeleteObject(ctx context.Context, objectKey string) error
}

// RawObjectKey lays out archived payloads as
// <prefix>/<playerId>/<year>-<month>/<planType>/<uuid>.json.
func RawObjectKey(prefix string, key domain.PlanKey) string {
	return path.Join(
		prefix,
		key.PlayerID.Hex(),
		fmt.Sprintf("%04d-%02d", key.Year, key.Month),
		string(key.Type),
		uuid.NewString()+".json",
	)
}

// MemoryArchive keeps objects in a map. Used by tests and the memory driver.
type MemoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (m *MemoryArchive) PutObject(_ context.Context, objectKey string, body []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryArchive) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[objectKey]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + objectKey, nil
}

func (m *MemoryArchive) DeleteObject(_ context.Context, objectKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey)
	return nil
}

// Object returns a stored body.
func (m *MemoryArchive) Object(objectKey string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[objectKey]
	return b, ok
}

// Len reports how many objects are stored.
func (m *MemoryArchive) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
