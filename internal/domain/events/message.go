package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the wire layout of Message.CreatedAt: ISO-8601 in UTC with
// millisecond precision, identical to JavaScript's Date.toISOString.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Message is one posted message on the board. Values are immutable once
// published; copies are handed to the event log and to every subscriber.
type Message struct {
	ID        string
	Content   string
	Author    string
	CreatedAt time.Time
}

// messageJSON is the wire representation of a Message.
type messageJSON struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
}

// NewMessage builds a Message stamped at the given time. The timestamp is
// normalised to UTC and truncated to milliseconds so that it survives a
// round trip through the wire format unchanged.
func NewMessage(id, content, author string, at time.Time) Message {
	return Message{
		ID:        id,
		Content:   content,
		Author:    author,
		CreatedAt: NormalizeTime(at),
	}
}

// NormalizeTime converts t to UTC millisecond precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// FormatTime formats t using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a wire timestamp. Any RFC 3339 value is accepted.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid createdAt %q: %w", s, err)
	}
	return NormalizeTime(t), nil
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{
		ID:        m.ID,
		Content:   m.Content,
		Author:    m.Author,
		CreatedAt: FormatTime(m.CreatedAt),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	createdAt, err := ParseTime(raw.CreatedAt)
	if err != nil {
		return err
	}
	*m = Message{
		ID:        raw.ID,
		Content:   raw.Content,
		Author:    raw.Author,
		CreatedAt: createdAt,
	}
	return nil
}

// Equal reports whether two messages carry the same id, content, author and
// timestamp.
func (m Message) Equal(other Message) bool {
	return m.ID == other.ID &&
		m.Content == other.Content &&
		m.Author == other.Author &&
		m.CreatedAt.Equal(other.CreatedAt)
}
