package schema

import (
	"testing"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/model"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

func TestValidateVideoCreate(t *testing.T) {
	v := newValidator(t)

	good := model.NewVideo{UserID: "u1", Title: "Hello", VideoURL: "http://x/v.mp4", Tags: []string{"a"}}
	if err := v.Validate(VideoCreate, good); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}

	blank := good
	blank.Title = "   "
	err := v.Validate(VideoCreate, blank)
	if !errordefs.Is(err, errordefs.VH_SCHEMA) {
		t.Fatalf("Validate() error = %v, want VH_SCHEMA", err)
	}
	e, _ := errordefs.As(err)
	fields, ok := e.Details.(map[string]string)
	if !ok || fields["title"] == "" {
		t.Errorf("Validate() details = %#v, want a title entry", e.Details)
	}
}

func TestValidateProfileUpdate(t *testing.T) {
	v := newValidator(t)
	ok := "good_name"
	if err := v.Validate(ProfileUpdate, model.ProfileUpdate{Username: &ok}); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}
	bad := "no spaces allowed"
	if err := v.Validate(ProfileUpdate, model.ProfileUpdate{Username: &bad}); err == nil {
		t.Error("Validate() expected error for invalid username")
	}
}

func TestValidateCommentAndMessage(t *testing.T) {
	v := newValidator(t)

	if err := v.Validate(CommentCreate, model.NewComment{VideoID: "v", UserID: "u", Content: " \n\t"}); err == nil {
		t.Error("Validate() expected whitespace comment to be rejected")
	}
	if err := v.Validate(CommentCreate, model.NewComment{VideoID: "v", UserID: "u", Content: "nice"}); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}

	if err := v.Validate(MessageSend, model.NewMessage{ChatID: "c", SenderID: "u"}); err == nil {
		t.Error("Validate() expected empty message to be rejected")
	}
	if err := v.Validate(MessageSend, model.NewMessage{ChatID: "c", SenderID: "u", MediaURL: "http://m", MediaType: "image"}); err != nil {
		t.Errorf("Validate() unexpected error for media message = %v", err)
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	v := newValidator(t)
	if err := v.Validate("nope", map[string]any{}); err == nil {
		t.Error("Validate() expected error for unknown schema")
	}
}
