package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

// ItemState is where one batch item stands.
type ItemState string

const (
	ItemPending    ItemState = "pending"
	ItemUploading  ItemState = "uploading"
	ItemProcessing ItemState = "processing"
	ItemCompleted  ItemState = "completed"
	ItemFailed     ItemState = "failed"
)

// Common is the metadata applied to every item of a batch.
type Common struct {
	Category            string     `json:"category"`
	Language            string     `json:"language"`
	IsPremium           bool       `json:"isPremium"`
	AllowComments       bool       `json:"allowComments"`
	MonetizationEnabled bool       `json:"monetizationEnabled"`
	Schedule            *time.Time `json:"schedule,omitempty"`
}

func (c Common) validate() error {
	if c.Category != "" && !model.ValidCategory(c.Category) {
		return errordefs.Validation("Unknown category " + c.Category)
	}
	if c.Language != "" && !model.ValidLanguage(c.Language) {
		return errordefs.Validation("Unknown language " + c.Language)
	}
	return nil
}

// Item is one file of a batch.
type Item struct {
	Index    int       `json:"index"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	State    ItemState `json:"state"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
	VideoID  string    `json:"videoId,omitempty"`

	file *Preview
}

// BatchView is a snapshot of a batch.
type BatchView struct {
	ID      string `json:"id"`
	Common  Common `json:"common"`
	Running bool   `json:"running"`
	Items   []Item `json:"items"`
}

// Batch is a queue of uploads sharing common metadata. Items run
// concurrently up to the configured limit and fail independently.
type Batch struct {
	ID      string
	OwnerID string

	deps    Deps
	mu      sync.Mutex
	common  Common
	items   []*Item
	running bool
	settled time.Time // end of the last run
}

// NewBatch creates an empty batch for owner.
func NewBatch(deps Deps, owner string, common Common) (*Batch, error) {
	if err := common.validate(); err != nil {
		return nil, err
	}
	return &Batch{ID: ulid.Make().String(), OwnerID: owner, deps: deps, common: common}, nil
}

// Add spools a file as a new pending item titled after its filename.
func (b *Batch) Add(name, contentType string, r io.Reader) (*Item, error) {
	if err := b.deps.Limits.CheckVideo(contentType); err != nil {
		return nil, err
	}
	pv, err := b.deps.Previews.Acquire(name, contentType, r, b.deps.Limits.MaxVideoSize)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it := &Item{Index: len(b.items), Filename: name, Title: TitleFromFilename(name), State: ItemPending, file: pv}
	b.items = append(b.items, it)
	cp := *it
	return &cp, nil
}

// SetCommon replaces the common metadata for items not yet started.
func (b *Batch) SetCommon(c Common) error {
	if err := c.validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.common = c
	b.mu.Unlock()
	return nil
}

// SetTitle renames pending item i.
func (b *Batch) SetTitle(i int, title string) error {
	if err := CheckTitle(title); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, err := b.itemLocked(i)
	if err != nil {
		return err
	}
	if it.State != ItemPending {
		return errordefs.Validation("only pending items can be renamed")
	}
	it.Title = strings.TrimSpace(title)
	return nil
}

func (b *Batch) itemLocked(i int) (*Item, error) {
	if i < 0 || i >= len(b.items) {
		return nil, errordefs.New(errordefs.VH_NOT_FOUND, fmt.Sprintf("no item %d", i), "")
	}
	return b.items[i], nil
}

// Retry puts failed item i back to pending.
func (b *Batch) Retry(i int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	it, err := b.itemLocked(i)
	if err != nil {
		return err
	}
	if it.State != ItemFailed {
		return errordefs.Validation("only failed items can be retried")
	}
	it.State = ItemPending
	it.Progress = 0
	it.Error = ""
	return nil
}

// Run processes every pending item and returns once each has settled. Item
// failures are recorded on the item, not returned.
func (b *Batch) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errordefs.New(errordefs.VH_BUSY, "batch already running", "")
	}
	var pending []*Item
	for _, it := range b.items {
		if it.State == ItemPending {
			it.State = ItemUploading
			it.Progress = 0
			pending = append(pending, it)
		}
	}
	b.running = true
	common := b.common
	b.mu.Unlock()

	limit := b.deps.Concurrency
	if limit <= 0 {
		limit = 3
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for _, it := range pending {
		it := it
		g.Go(func() error {
			b.process(ctx, it, common)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	b.running = false
	b.settled = b.deps.now()
	b.mu.Unlock()
	return nil
}

// idleSince reports when the batch last finished running. ok is false while
// it runs or when it has never run.
func (b *Batch) idleSince() (at time.Time, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running || b.settled.IsZero() {
		return time.Time{}, false
	}
	return b.settled, true
}

// Running reports whether Run is in progress.
func (b *Batch) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Batch) process(ctx context.Context, it *Item, common Common) {
	b.mu.Lock()
	file, title := it.file, it.Title
	b.mu.Unlock()

	buckets := b.deps.Backend.Buckets()
	now := b.deps.now()

	var (
		meta     mediaprobe.Metadata
		videoURL string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := b.deps.probe(gctx, file.Path)
		if err != nil {
			b.deps.logger().WarnContext(ctx, "batch probe failed",
				slog.String("batch_id", b.ID), slog.String("file", file.Name), slog.String("error", err.Error()))
			return nil
		}
		meta = m
		return nil
	})
	g.Go(func() error {
		f, err := file.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		videoURL, err = b.deps.Backend.UploadObject(gctx, media.UploadInput{
			Bucket:      buckets.Videos,
			Key:         media.UniqueObjectKey(b.OwnerID, file.Name, now),
			Body:        f,
			Size:        file.Size,
			ContentType: file.ContentType,
			Progress: func(sent, total int64) {
				b.mu.Lock()
				it.Progress = media.Percent(sent, total)
				b.mu.Unlock()
			},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		b.fail(ctx, it, err)
		return
	}

	b.mu.Lock()
	it.State = ItemProcessing
	it.Progress = 100
	b.mu.Unlock()

	thumbURL := b.autoThumbnail(ctx, file, meta, now)
	published, publishedAt := publishState(common.Schedule, now)
	v, err := b.deps.Backend.CreateVideo(ctx, model.NewVideo{
		UserID:              b.OwnerID,
		Title:               title,
		VideoURL:            videoURL,
		ThumbnailURL:        thumbURL,
		Duration:            meta.Seconds(),
		IsPublished:         published,
		PublishedAt:         publishedAt,
		IsPremium:           common.IsPremium,
		IsShort:             meta.Portrait(),
		Category:            common.Category,
		Tags:                []string{},
		Language:            common.Language,
		AllowComments:       common.AllowComments,
		MonetizationEnabled: common.MonetizationEnabled,
	})
	if err != nil {
		b.fail(ctx, it, err)
		return
	}

	b.mu.Lock()
	it.State = ItemCompleted
	it.VideoID = v.ID
	it.file = nil
	b.mu.Unlock()
	b.deps.Previews.Release(file)
	b.deps.observe("batch", string(ItemCompleted))
}

// autoThumbnail captures the frame at 25% of the video and stores it. It
// returns "" when that is not possible.
func (b *Batch) autoThumbnail(ctx context.Context, file *Preview, meta mediaprobe.Metadata, now time.Time) string {
	if meta.Duration <= 0 {
		return ""
	}
	frames, err := b.deps.capture(ctx, file.Path, mediaprobe.ThumbnailTargets(meta.Duration)[:1])
	if err != nil {
		b.deps.logger().WarnContext(ctx, "batch thumbnail failed", slog.String("file", file.Name), slog.String("error", err.Error()))
		return ""
	}
	jpeg := frames[0].JPEG
	url, err := b.deps.Backend.UploadObject(ctx, media.UploadInput{
		Bucket:      b.deps.Backend.Buckets().Thumbnails,
		Key:         media.UniqueObjectKey(b.OwnerID, TitleFromFilename(file.Name)+".jpg", now),
		Body:        bytes.NewReader(jpeg),
		Size:        int64(len(jpeg)),
		ContentType: "image/jpeg",
	})
	if err != nil {
		b.deps.logger().WarnContext(ctx, "batch thumbnail upload failed", slog.String("file", file.Name), slog.String("error", err.Error()))
		return ""
	}
	return url
}

func (b *Batch) fail(ctx context.Context, it *Item, err error) {
	b.deps.logger().ErrorContext(ctx, "batch item failed",
		slog.String("batch_id", b.ID), slog.Int("index", it.Index), slog.String("error", err.Error()))
	b.mu.Lock()
	it.State = ItemFailed
	it.Error = errMessage(err)
	b.mu.Unlock()
	b.deps.observe("batch", string(ItemFailed))
}

// Close releases the spooled files still held by failed or pending items.
// Completed items released theirs when they finished.
func (b *Batch) Close() {
	b.mu.Lock()
	var files []*Preview
	for _, it := range b.items {
		files = append(files, it.file)
		it.file = nil
	}
	b.mu.Unlock()
	for _, f := range files {
		b.deps.Previews.Release(f)
	}
}

// Snapshot returns the current state.
func (b *Batch) Snapshot() BatchView {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]Item, len(b.items))
	for i, it := range b.items {
		items[i] = *it
		items[i].file = nil
	}
	return BatchView{ID: b.ID, Common: b.common, Running: b.running, Items: items}
}
