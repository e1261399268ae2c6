package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/media"
	"github.com/RegistryAccord/vidhub-go/internal/mediaprobe"
	"github.com/RegistryAccord/vidhub-go/internal/model"
	"github.com/RegistryAccord/vidhub-go/internal/upload"
)

// handleUploadForm returns what the upload form needs to render.
func (s *Server) handleUploadForm(w http.ResponseWriter, r *http.Request) {
	s.writePage(w, r, map[string]interface{}{
		"form":         upload.DefaultForm(),
		"categories":   model.Categories,
		"languages":    model.Languages,
		"maxVideoSize": s.uploads.Limits.MaxVideoSize,
		"maxImageSize": s.uploads.Limits.MaxImageSize,
		"thumbnails":   s.uploads.Opener != nil,
	})
}

// parseMultipart bounds the body to limit and parses it, spilling large parts
// to disk.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request, limit int64) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return errordefs.New(errordefs.VH_MEDIA_SIZE, "upload is too large", "")
		}
		return badRequest("expected multipart/form-data body")
	}
	return nil
}

func (s *Server) videoBodyLimit(files int) int64 {
	if s.uploads.Limits.MaxVideoSize <= 0 {
		return 0
	}
	return int64(files)*s.uploads.Limits.MaxVideoSize + s.uploads.Limits.MaxImageSize + multipartOverrun
}

// handleUpload runs the single-video pipeline for one multipart request with
// parts "video", optional "thumbnail", and a JSON "metadata" form. Instead of
// a file, "thumbnailAt" in seconds captures one frame, and "thumbnails=auto"
// generates frames at 25/50/75% of the duration with "thumbnailChoice"
// picking one of them (default 0).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r, s.videoBodyLimit(1)); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	form := upload.DefaultForm()
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form); err != nil {
			s.writeError(w, r, badRequest("metadata must be a JSON object"))
			return
		}
	}

	single := upload.NewSingle(s.uploads, providerFrom(r.Context()))
	defer single.Close()

	if err := single.SetForm(form); err != nil {
		s.writeError(w, r, err)
		return
	}
	video, header, err := r.FormFile("video")
	if err != nil {
		s.writeError(w, r, errordefs.Validation("Please select a video to upload"))
		return
	}
	defer video.Close()
	if err := single.SelectVideo(r.Context(), header.Filename, partType(header), video); err != nil {
		s.writeError(w, r, err)
		return
	}
	if v := r.FormValue("short"); v != "" {
		short, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, badRequest("short must be true or false"))
			return
		}
		single.SetShort(short)
	}
	if err := s.chooseThumbnail(r, single); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := single.Submit(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusCreated, single.Snapshot())
}

func (s *Server) chooseThumbnail(r *http.Request, single *upload.Single) error {
	thumb, header, err := r.FormFile("thumbnail")
	if err == nil {
		defer thumb.Close()
		return single.SetThumbnailFile(header.Filename, partType(header), thumb)
	}
	if mode := r.FormValue("thumbnails"); mode != "" {
		if mode != "auto" {
			return badRequest("thumbnails must be auto")
		}
		return generateThumbnails(r, single)
	}
	at := r.FormValue("thumbnailAt")
	if at == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(at, 64)
	if err != nil || secs < 0 {
		return badRequest("thumbnailAt must be a non-negative number of seconds")
	}
	single.SetPosition(time.Duration(secs * float64(time.Second)))
	_, err = single.CaptureThumbnail(r.Context())
	return decoderError(err)
}

func generateThumbnails(r *http.Request, single *upload.Single) error {
	choice := 0
	if v := r.FormValue("thumbnailChoice"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return badRequest("thumbnailChoice must be a number")
		}
		choice = n
	}
	if _, err := single.GenerateThumbnails(r.Context()); err != nil {
		return decoderError(err)
	}
	return single.ChooseThumbnail(choice)
}

func decoderError(err error) error {
	if errors.Is(err, mediaprobe.ErrUnavailable) {
		return errordefs.New(errordefs.VH_UNAVAILABLE, "Thumbnail capture is not available", "")
	}
	return err
}

func partType(h *multipart.FileHeader) string {
	return h.Header.Get("Content-Type")
}

// handlePresign issues a direct-to-storage upload URL.
func (s *Server) handlePresign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string `json:"kind"` // video or thumbnail
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.writeError(w, r, errordefs.Validation("filename is required"))
		return
	}
	buckets := s.gw.Buckets()
	var bucket string
	switch req.Kind {
	case "video":
		if err := s.uploads.Limits.CheckVideo(req.ContentType); err != nil {
			s.writeError(w, r, err)
			return
		}
		bucket = buckets.Videos
	case "thumbnail":
		if err := s.uploads.Limits.CheckImage(req.ContentType); err != nil {
			s.writeError(w, r, err)
			return
		}
		bucket = buckets.Thumbnails
	default:
		s.writeError(w, r, errordefs.Validation("kind must be video or thumbnail"))
		return
	}

	user, _ := providerFrom(r.Context()).Require()
	key := media.ObjectKey(user.ID, req.Filename, time.Now())
	u, err := s.gw.PresignUpload(r.Context(), bucket, key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]string{
		"uploadUrl": u,
		"publicUrl": s.gw.PublicURL(bucket, key),
		"bucket":    bucket,
		"key":       key,
	})
}

// handleCreateBatch spools every "files" part into a new batch and starts it
// in the background. An optional "titles" JSON array renames items by index;
// empty entries keep the filename title. Progress is polled with
// handleGetBatch.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r, s.batchBodyLimit()); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	common := upload.Common{AllowComments: true}
	if raw := r.FormValue("common"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &common); err != nil {
			s.writeError(w, r, badRequest("common must be a JSON object"))
			return
		}
	}
	var titles []string
	if raw := r.FormValue("titles"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &titles); err != nil {
			s.writeError(w, r, badRequest("titles must be a JSON array of strings"))
			return
		}
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, r, errordefs.Validation("Please select at least one video"))
		return
	}
	if len(files) > maxBatchFiles {
		s.writeError(w, r, errordefs.Validation("Too many files in one batch"))
		return
	}
	if len(titles) > len(files) {
		s.writeError(w, r, errordefs.Validation("More titles than files"))
		return
	}

	user, _ := providerFrom(r.Context()).Require()
	batch, err := s.batches.Create(user.ID, common)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for _, fh := range files {
		if err := addPart(batch, fh); err != nil {
			_ = s.batches.Remove(batch.ID, user.ID)
			s.writeError(w, r, err)
			return
		}
	}
	for i, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		if err := batch.SetTitle(i, title); err != nil {
			_ = s.batches.Remove(batch.ID, user.ID)
			s.writeError(w, r, err)
			return
		}
	}
	s.runBatch(batch)
	s.writeSuccess(w, http.StatusAccepted, batch.Snapshot())
}

func (s *Server) batchBodyLimit() int64 {
	if s.uploads.Limits.MaxVideoSize <= 0 {
		return 0
	}
	return maxBatchFiles*s.uploads.Limits.MaxVideoSize + multipartOverrun
}

const maxBatchFiles = 20

func addPart(b *upload.Batch, fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return badRequest("unreadable upload part " + fh.Filename)
	}
	defer f.Close()
	_, err = b.Add(fh.Filename, partType(fh), f)
	return err
}

func (s *Server) runBatch(b *upload.Batch) {
	s.background(func(ctx context.Context) {
		if err := b.Run(ctx); err != nil {
			s.logger.WarnContext(ctx, "batch run skipped",
				slog.String("batch_id", b.ID),
				slog.String("error", err.Error()))
		}
	})
}

// handleListBatches returns the caller's batches, oldest first.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	batches := s.batches.List(user.ID)
	out := make([]upload.BatchView, len(batches))
	for i, b := range batches {
		out[i] = b.Snapshot()
	}
	s.writePage(w, r, out)
}

// handleDeleteBatch forgets a batch that is not running and releases its
// remaining files.
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	if err := s.batches.Remove(chi.URLParam(r, "id"), user.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSuccess(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	b, err := s.batches.Get(chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writePage(w, r, b.Snapshot())
}

// retryRequest optionally edits a failed item before it runs again.
type retryRequest struct {
	Title  string         `json:"title,omitempty"`
	Common *upload.Common `json:"common,omitempty"` // replaces the batch's common metadata
}

// handleRetryBatchItem resets a failed item and runs the batch again. A JSON
// body may rename the item or replace the common metadata first.
func (s *Server) handleRetryBatchItem(w http.ResponseWriter, r *http.Request) {
	user, _ := providerFrom(r.Context()).Require()
	b, err := s.batches.Get(chi.URLParam(r, "id"), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, r, badRequest("item index must be a number"))
		return
	}
	var req retryRequest
	if r.ContentLength != 0 && r.Header.Get("Content-Type") != "" {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if req.Title != "" {
		if err := upload.CheckTitle(req.Title); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if b.Running() {
		s.writeError(w, r, errordefs.New(errordefs.VH_BUSY, "batch is still running", ""))
		return
	}
	if req.Common != nil {
		if err := b.SetCommon(*req.Common); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := b.Retry(index); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Title != "" {
		if err := b.SetTitle(index, req.Title); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	s.runBatch(b)
	s.writeSuccess(w, http.StatusAccepted, b.Snapshot())
}
