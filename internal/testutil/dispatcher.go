package testutil

import (
	"context"
	"sync"

	"github.com/Ananth-NQI/delivery-backend/internal/services"
)

// SentMessage is one message captured by Recorder
type SentMessage struct {
	To       string
	Text     string
	ImageURL string
	Rows     []services.ListRow
}

// Recorder is a services.Dispatcher that captures messages. Sends to a
// phone listed in Fail return that error instead.
type Recorder struct {
	mu       sync.Mutex
	messages []SentMessage
	Fail     map[string]error
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{Fail: map[string]error{}}
}

func (r *Recorder) record(m SentMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.Fail[m.To]; ok {
		return err
	}
	r.messages = append(r.messages, m)
	return nil
}

func (r *Recorder) SendText(ctx context.Context, to, body string) error {
	return r.record(SentMessage{To: to, Text: body})
}

func (r *Recorder) SendImage(ctx context.Context, to, imageURL, caption string) error {
	return r.record(SentMessage{To: to, Text: caption, ImageURL: imageURL})
}

func (r *Recorder) SendList(ctx context.Context, to, title string, rows []services.ListRow) error {
	return r.record(SentMessage{To: to, Text: services.RenderList(title, rows), Rows: rows})
}

// Messages returns every captured message in send order
func (r *Recorder) Messages() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentMessage(nil), r.messages...)
}

// To returns the messages sent to phone
func (r *Recorder) To(phone string) []SentMessage {
	var out []SentMessage
	for _, m := range r.Messages() {
		if m.To == phone {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message sent to phone
func (r *Recorder) Last(phone string) (SentMessage, bool) {
	msgs := r.To(phone)
	if len(msgs) == 0 {
		return SentMessage{}, false
	}
	return msgs[len(msgs)-1], true
}

// Reset drops every captured message
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

var _ services.Dispatcher = (*Recorder)(nil)
