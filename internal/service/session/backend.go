package session

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

// ErrBackend wraps failures of the session persistence layer.
var ErrBackend = errors.New("session backend failure")

// Backend persists sessions. Implementations must be safe for concurrent use;
// serialising writers of the same id is the Store's job.
type Backend interface {
	Load(ctx context.Context, id string) (*conversation.Session, bool, error)
	Save(ctx context.Context, s *conversation.Session) error
	Delete(ctx context.Context, id string) error
	// Sweep deletes sessions idle since before cutoff and reports how many
	// were removed and how many remain (-1 when unknown).
	Sweep(ctx context.Context, cutoff time.Time) (removed []string, remaining int, err error)
}
