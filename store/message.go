package store

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser  Sender = "USER"
	SenderAgent Sender = "AGENT"
)

// Message is a single chat message. Messages are immutable once stored:
// they are only ever inserted or bulk-deleted, never edited.
type Message struct {
	// UID is a UUID string and the sole identity key.
	UID     string
	Content string
	Sender  Sender
	// CreatedTs is milliseconds since epoch.
	CreatedTs int64
	// Day is the "YYYY-MM-DD" grouping key, fixed at creation time from the
	// local clock. Queries compare this stored value, never re-derive it.
	Day string
}

type FindMessage struct {
	UID *string
	Day *string
}

type DeleteMessage struct {
	// Day scopes the delete to one day. Nil deletes everything.
	Day *string
}

// DayOf formats a timestamp in milliseconds as the local-timezone day key.
func DayOf(tsMilli int64) string {
	return time.UnixMilli(tsMilli).Format("2006-01-02")
}
