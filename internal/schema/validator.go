// Package schema validates write payloads against JSON schemas before they
// reach the backend.
package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	errordefs "github.com/RegistryAccord/vidhub-go/internal/errors"
	"github.com/RegistryAccord/vidhub-go/internal/metrics"
)

// Schema names.
const (
	VideoCreate   = "video.create"
	ProfileUpdate = "profile.update"
	CommentCreate = "comment.create"
	MessageSend   = "message.send"
)

// definitions holds the JSON schemas keyed by name. Property names follow the
// JSON encoding of the model types.
var definitions = map[string]string{
	VideoCreate: `{
		"type": "object",
		"required": ["userId", "title", "videoUrl"],
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"title": {"type": "string", "minLength": 1, "maxLength": 100, "pattern": "\\S"},
			"description": {"type": "string", "maxLength": 5000},
			"videoUrl": {"type": "string", "minLength": 1},
			"thumbnailUrl": {"type": "string"},
			"duration": {"type": "integer", "minimum": 0},
			"category": {"type": "string", "maxLength": 64},
			"language": {"type": "string", "maxLength": 64},
			"tags": {"type": ["array", "null"], "maxItems": 30, "items": {"type": "string", "minLength": 1, "maxLength": 64}}
		}
	}`,
	ProfileUpdate: `{
		"type": "object",
		"properties": {
			"username": {"type": "string", "pattern": "^[A-Za-z0-9_.]{3,30}$"},
			"fullName": {"type": "string", "maxLength": 100},
			"bio": {"type": "string", "maxLength": 1000},
			"channelUrl": {"type": "string", "maxLength": 100, "pattern": "^[A-Za-z0-9_.-]*$"},
			"avatarUrl": {"type": "string"},
			"bannerUrl": {"type": "string"}
		}
	}`,
	CommentCreate: `{
		"type": "object",
		"required": ["videoId", "userId", "content"],
		"properties": {
			"videoId": {"type": "string", "minLength": 1},
			"userId": {"type": "string", "minLength": 1},
			"parentId": {"type": "string"},
			"content": {"type": "string", "minLength": 1, "maxLength": 10000, "pattern": "\\S"}
		}
	}`,
	MessageSend: `{
		"type": "object",
		"required": ["chatId", "senderId"],
		"properties": {
			"chatId": {"type": "string", "minLength": 1},
			"senderId": {"type": "string", "minLength": 1},
			"content": {"type": "string", "maxLength": 4000},
			"mediaUrl": {"type": "string"},
			"mediaType": {"type": "string", "enum": ["image", "video", "audio", "file"]}
		},
		"anyOf": [
			{"required": ["content"], "properties": {"content": {"pattern": "\\S"}}},
			{"required": ["mediaUrl"]}
		]
	}`,
}

// Validator validates payloads against compiled JSON schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
	metrics *metrics.Metrics
}

// NewValidator compiles every known schema.
func NewValidator(m *metrics.Metrics) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(definitions)), metrics: m}
	for name, def := range definitions {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(def))
		if err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// Validate checks payload (any JSON-encodable value) against the named schema.
// Violations are returned as a VH_SCHEMA error listing each failed field.
func (v *Validator) Validate(name string, payload any) (err error) {
	start := time.Now()
	defer func() { v.metrics.ObserveSchema(name, start, err) }()

	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	fields := make(map[string]string, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" && desc.Details()["property"] != nil {
			field = fmt.Sprint(desc.Details()["property"])
		}
		fields[field] = desc.Description()
	}
	return errordefs.NewWithDetails(errordefs.VH_SCHEMA, "payload failed "+name+" validation", "", fields)
}
