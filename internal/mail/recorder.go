package mail

import (
	"context"
	"errors"
	"sync"
)

// Recorder keeps sent messages in memory. FailFor makes sends to the
// listed recipients fail with Err; the key "*" fails every send.
type Recorder struct {
	mu      sync.Mutex
	Sent    []Message
	FailFor map[string]bool
	Err     error
}

// Send records msg or fails for configured recipients.
func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFor[msg.To] || r.FailFor["*"] {
		if r.Err != nil {
			return r.Err
		}
		return errRecorderFailure
	}
	r.Sent = append(r.Sent, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.Sent...)
}

var errRecorderFailure = errors.New("mail: delivery failed")
