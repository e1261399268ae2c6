// Package media provides the object storage boundary: upload with progress,
// public URL issuance, and presigned direct-upload URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned by Stat when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ErrExists is returned by Upload when the key is taken and Upsert is false.
var ErrExists = errors.New("object already exists")

// ProgressFunc receives the number of bytes sent so far and the total size.
type ProgressFunc func(sent, total int64)

// UploadInput describes one object write.
type UploadInput struct {
	Bucket       string
	Key          string
	Body         io.Reader
	Size         int64
	ContentType  string
	CacheControl string
	Upsert       bool         // Overwrite an existing object
	Progress     ProgressFunc // Optional
}

// ObjectInfo is the result of Stat.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStore is implemented by S3Store and Memory.
type ObjectStore interface {
	Upload(ctx context.Context, in UploadInput) error
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	PublicURL(bucket, key string) string
	PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
}

// ObjectKey builds "{owner}/{unixMillis}-{filename}" with path separators
// stripped from the filename.
func ObjectKey(owner, filename string, now time.Time) string {
	return fmt.Sprintf("%s/%d-%s", owner, now.UnixMilli(), cleanName(filename))
}

// UniqueObjectKey builds "{owner}/{ulid}-{filename}". The ULID carries now as
// its timestamp, so keys stay time-ordered while writers that store the same
// filename in the same millisecond still get distinct keys.
func UniqueObjectKey(owner, filename string, now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return fmt.Sprintf("%s/%s-%s", owner, id, cleanName(filename))
}

func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.ReplaceAll(name, " ", "_")
}

// ProfileImageKey builds "{owner}/{kind}-{unixMillis}" for avatars and banners.
func ProfileImageKey(owner, kind string, now time.Time) string {
	return fmt.Sprintf("%s/%s-%d", owner, kind, now.UnixMilli())
}

// Percent converts a progress pair into 0..100.
func Percent(sent, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(sent * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

// progressReader reports cumulative bytes read to a ProgressFunc.
type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) io.Reader {
	if fn == nil {
		return r
	}
	return &progressReader{r: r, total: total, progress: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.progress(p.sent, p.total)
	}
	return n, err
}

// Memory is an in-process ObjectStore for development and tests.
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemory creates an empty in-memory object store whose public URLs start with baseURL.
func NewMemory(baseURL string) *Memory {
	return &Memory{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]memoryObject)}
}

// Upload stores the body under bucket/key, reporting progress as it reads.
func (m *Memory) Upload(ctx context.Context, in UploadInput) error {
	data, err := io.ReadAll(newProgressReader(in.Body, in.Size, in.Progress))
	if err != nil {
		return fmt.Errorf("read upload body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := in.Bucket + "/" + in.Key
	if _, exists := m.objects[id]; exists && !in.Upsert {
		return ErrExists
	}
	m.objects[id] = memoryObject{data: data, contentType: in.ContentType}
	return nil
}

// Stat returns the size and content type of a stored object.
func (m *Memory) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

// PublicURL joins the base URL, bucket and key.
func (m *Memory) PublicURL(bucket, key string) string {
	return m.baseURL + "/" + bucket + "/" + key
}

// PresignUpload returns the public URL with an expiry parameter; the memory
// store does not check it.
func (m *Memory) PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("%s/%s/%s?expires=%d", m.baseURL, bucket, key, time.Now().Add(expires).Unix()), nil
}

// Object returns a stored object's bytes; tests use it to inspect uploads.
func (m *Memory) Object(bucket, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+key]
	return obj.data, ok
}
