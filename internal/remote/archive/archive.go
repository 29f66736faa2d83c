// Package archive uploads chat transcripts to object storage when a session
// ends.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const linkExpiry = 24 * time.Hour

// Transcript is the archived document.
type Transcript struct {
	Robot     string         `json:"robot"`
	SessionID string         `json:"sessionId"`
	ClosedAt  time.Time      `json:"closedAt"`
	Messages  []chat.Message `json:"messages"`
}

// Archiver writes transcripts through a Provider.
type Archiver struct {
	provider Provider
	robotID  string
	now      func() time.Time
}

// New creates an Archiver for robotID.
func New(provider Provider, robotID string) *Archiver {
	return &Archiver{provider: provider, robotID: robotID, now: time.Now}
}

// Archive uploads messages and returns the object key. Empty transcripts are
// skipped and yield "".
func (a *Archiver) Archive(ctx context.Context, sessionID string, messages []chat.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}

	if err := a.provider.CheckBucket(ctx); err != nil {
		return "", err
	}

	closedAt := a.now().UTC()
	doc := Transcript{Robot: a.robotID, SessionID: sessionID, ClosedAt: closedAt, Messages: messages}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	key := ObjectKey(a.robotID, sessionID, closedAt)
	if err := a.provider.Put(ctx, key, data, "application/json"); err != nil {
		return "", err
	}

	link, err := a.provider.PresignedURL(ctx, key, linkExpiry)
	if err != nil {
		log.Warn("Transcript archived without a download link", "key", key, "error", err)
	} else {
		log.Info("Transcript archived", "key", key, "messages", len(messages), "url", link)
	}
	return key, nil
}

// ObjectKey builds transcripts/{robot}/{yyyy-mm-dd}/{session}-{nonce}.json.
func ObjectKey(robotID, sessionID string, at time.Time) string {
	return fmt.Sprintf("transcripts/%s/%s/%s-%s.json", robotID, at.UTC().Format("2006-01-02"), sessionID, uuid.NewString()[:8])
}
