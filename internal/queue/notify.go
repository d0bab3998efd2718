package queue

import (
	"media-pipeline/internal/catalog"
	"media-pipeline/internal/logging"
)

// ChangeKind classifies a file notification.
type ChangeKind string

// ChangeKindChanged covers every status and progress transition. The richer
// taxonomy (created/deleted) belongs to the upload layer, which is not part
// of this service.
const ChangeKindChanged ChangeKind = "CHANGED"

// Notifier receives file change events. Implementations must tolerate
// concurrent delivery; the queue never waits on them.
type Notifier interface {
	FileChanged(fileID string, change ChangeKind, snapshot catalog.FileSnapshot)
}

// notify fans a snapshot out to every subscriber. Each delivery runs in its
// own goroutine so a slow or panicking subscriber cannot stall or kill the
// pipeline.
func (q *Queue) notify(fileID string, snapshot catalog.FileSnapshot) {
	q.mu.Lock()
	subs := make([]Notifier, len(q.notifiers))
	copy(subs, q.notifiers)
	q.mu.Unlock()

	for _, n := range subs {
		go func(n Notifier) {
			defer func() {
				if r := recover(); r != nil {
					logging.Error("notifier panicked for file %s: %v", fileID, r)
				}
			}()
			n.FileChanged(fileID, ChangeKindChanged, snapshot)
		}(n)
	}
}
