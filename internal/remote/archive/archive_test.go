package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/chat"
)

type memProvider struct {
	checked int
	objects map[string][]byte
	putErr  error
}

func (m *memProvider) CheckBucket(context.Context) error {
	m.checked++
	return nil
}

func (m *memProvider) Put(_ context.Context, key string, data []byte, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memProvider) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.local/" + key, nil
}

func TestArchiveUploadsTranscript(t *testing.T) {
	p := &memProvider{}
	a := New(p, "rover")
	a.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }

	msgs := []chat.Message{
		{ID: 1, Role: chat.RoleUser, Text: "hi"},
		{ID: 2, Role: chat.RoleAssistant, Text: "hello", Spoken: true},
	}
	key, err := a.Archive(context.Background(), "sess-1", msgs)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if !strings.HasPrefix(key, "transcripts/rover/2025-03-04/sess-1-") || !strings.HasSuffix(key, ".json") {
		t.Errorf("key = %q", key)
	}

	var doc Transcript
	if err := json.Unmarshal(p.objects[key], &doc); err != nil {
		t.Fatal(err)
	}
	if doc.SessionID != "sess-1" || len(doc.Messages) != 2 || doc.Messages[1].Text != "hello" {
		t.Errorf("archived document = %+v", doc)
	}
}

func TestArchiveSkipsEmptyTranscript(t *testing.T) {
	p := &memProvider{}
	key, err := New(p, "rover").Archive(context.Background(), "sess", nil)
	if err != nil || key != "" || p.checked != 0 {
		t.Errorf("Archive() = %q, %v; checked=%d", key, err, p.checked)
	}
}

func TestArchivePropagatesUploadError(t *testing.T) {
	p := &memProvider{putErr: errors.New("denied")}
	_, err := New(p, "rover").Archive(context.Background(), "sess", []chat.Message{{ID: 1, Text: "x"}})
	if err == nil {
		t.Fatal("Archive() succeeded despite upload failure")
	}
}

func TestObjectKeyIsUnique(t *testing.T) {
	at := time.Now()
	if ObjectKey("r", "s", at) == ObjectKey("r", "s", at) {
		t.Error("two keys collided")
	}
}
