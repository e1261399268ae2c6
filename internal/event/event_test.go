package event

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/vidhub-go/internal/model"
)

func TestNewEnvelopeCarriesCorrelation(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-1")
	a := NewEnvelope(ctx, SubjectVideoUploaded, map[string]string{"id": "v1"})
	b := NewEnvelope(ctx, SubjectVideoUploaded, nil)

	assert.Equal(t, "corr-1", a.CorrelationID)
	assert.Equal(t, SubjectVideoUploaded, a.Type)
	assert.Len(t, a.ID, 26)
	assert.Less(t, a.ID, b.ID, "ULIDs are monotonic")

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"correlationId":"corr-1"`)
}

func TestToggleStateEncodesAsText(t *testing.T) {
	raw, err := json.Marshal(Toggle{SubjectID: "v", UserID: "u", State: model.ToggledOn})
	require.NoError(t, err)
	assert.JSONEq(t, `{"subjectId":"v","userId":"u","state":"on"}`, string(raw))
}

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	pub := NewPublisher("", slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, pub.PublishComment(context.Background(), model.Comment{ID: "c"}))
	require.NoError(t, pub.Close())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	require.NoError(t, r.PublishVideo(ctx, SubjectVideoUploaded, model.Video{ID: "v"}))
	require.NoError(t, r.PublishToggle(ctx, SubjectVideoLiked, Toggle{SubjectID: "v", State: model.ToggledOff}))
	assert.Equal(t, []string{SubjectVideoUploaded, SubjectVideoLiked}, r.Types())
}

func TestDedupWindow(t *testing.T) {
	p := &natsPub{dedup: make(map[string]time.Time)}
	assert.False(t, p.seen("a"))
	assert.True(t, p.seen("a"))
	assert.False(t, p.seen("b"))
}
