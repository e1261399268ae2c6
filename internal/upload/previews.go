package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
)

// Preview is a selected file spooled to local disk. It lives until released.
type Preview struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Path        string `json:"-"`
}

// Open opens the spooled file for reading.
func (p *Preview) Open() (*os.File, error) { return os.Open(p.Path) }

// Previews tracks spooled files so each can be removed when superseded or
// when its owner goes away.
type Previews struct {
	dir   string
	mu    sync.Mutex
	items map[string]*Preview
}

// NewPreviews spools into dir, or the system temp dir when dir is empty.
func NewPreviews(dir string) *Previews {
	return &Previews{dir: dir, items: map[string]*Preview{}}
}

// Acquire copies r to a new temp file. Bodies larger than max bytes are
// rejected with VH_MEDIA_SIZE; max <= 0 means unlimited.
func (p *Previews) Acquire(name, contentType string, r io.Reader, max int64) (*Preview, error) {
	f, err := os.CreateTemp(p.dir, "vidhub-*"+filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	src := r
	if max > 0 {
		src = io.LimitReader(r, max+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && max > 0 && n > max {
		err = errordefs.New(errordefs.VH_MEDIA_SIZE, fmt.Sprintf("file exceeds %d bytes", max), "")
	}
	if err != nil {
		_ = os.Remove(f.Name())
		var coded *errordefs.Error
		if errors.As(err, &coded) {
			return nil, coded
		}
		return nil, fmt.Errorf("spool %s: %w", name, err)
	}

	pv := &Preview{ID: ulid.Make().String(), Name: name, ContentType: contentType, Size: n, Path: f.Name()}
	p.mu.Lock()
	p.items[pv.ID] = pv
	p.mu.Unlock()
	return pv, nil
}

// Release removes the spooled file of pv. Releasing nil or twice is a no-op.
func (p *Previews) Release(pv *Preview) {
	if pv == nil {
		return
	}
	p.mu.Lock()
	_, ok := p.items[pv.ID]
	delete(p.items, pv.ID)
	p.mu.Unlock()
	if ok {
		_ = os.Remove(pv.Path)
	}
}

// ReleaseAll removes every spooled file.
func (p *Previews) ReleaseAll() {
	p.mu.Lock()
	items := p.items
	p.items = map[string]*Preview{}
	p.mu.Unlock()
	for _, pv := range items {
		_ = os.Remove(pv.Path)
	}
}

// Len is the number of live previews.
func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
