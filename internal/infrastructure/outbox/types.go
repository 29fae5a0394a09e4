package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notice is a queued overdue notification addressed to the task's
// assigner. It stays in the outbox until a drain pass hands it to the
// sender or the retry cap drops it.
type Notice struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	TaskTitle  string    `json:"task_title"`
	AssignerID string    `json:"assigner_id"`
	AssigneeID string    `json:"assignee_id,omitempty"`
	DueAt      time.Time `json:"due_at"`
	Retries    int       `json:"retries"`
	Timestamp  time.Time `json:"timestamp"`

	bucketKey []byte
}

func (n *Notice) normalize() {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
}

// buildKey orders notices by enqueue time, with the id as tiebreaker.
func buildKey(n Notice) string {
	return fmt.Sprintf("%020d:%s", n.Timestamp.UnixNano(), n.ID)
}
