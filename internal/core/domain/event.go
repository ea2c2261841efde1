package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a broadcast event as viewers see it on the wire.
type EventType string

const (
	EventUpdatePosts         EventType = "update_posts"
	EventPostDeleted         EventType = "post_deleted"
	EventPostsCleared        EventType = "posts_cleared"
	EventTopicUpdated        EventType = "topic_updated"
	EventRolesUpdated        EventType = "roles_updated"
	EventUserSuffixUpdated   EventType = "user_suffix_updated"
	EventRequestPostsUpdate  EventType = "request_posts_update"
	EventRestrictionsUpdated EventType = "restrictions_updated"
	EventNGWordsUpdated      EventType = "ng_words_updated"
)

// Event describes one state change, carrying enough data for a viewer to
// update without a full reload.
type Event struct {
	ID        string    `json:"id" bson:"event_id"`
	Type      EventType `json:"type" bson:"type"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Data      any       `json:"data,omitempty" bson:"data,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t EventType, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// PostView is a post decorated for display: role styling merged with the
// author's personal decoration.
type PostView struct {
	ID          int       `json:"id" bson:"id"`
	Author      Identity  `json:"author" bson:"author"`
	Name        string    `json:"name" bson:"name"`
	DisplayName string    `json:"display_name" bson:"display_name"`
	Body        string    `json:"body" bson:"body"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	Role        string    `json:"role" bson:"role"`
	NameColor   string    `json:"name_color,omitempty" bson:"name_color,omitempty"`
	Suffix      string    `json:"suffix,omitempty" bson:"suffix,omitempty"`
	SuffixColor string    `json:"suffix_color,omitempty" bson:"suffix_color,omitempty"`
}

type UpdatePostsData struct {
	Posts []PostView `json:"posts" bson:"posts"`
	Topic string     `json:"topic" bson:"topic"`
}

type PostDeletedData struct {
	IDs []int `json:"ids" bson:"ids"`
}

type TopicUpdatedData struct {
	Topic string `json:"topic" bson:"topic"`
}

type RolesUpdatedData struct {
	Identity Identity `json:"identity" bson:"identity"`
	Role     string   `json:"role" bson:"role"`
}

type UserSuffixUpdatedData struct {
	Identity Identity `json:"identity" bson:"identity"`
	Text     string   `json:"text" bson:"text"`
	Color    string   `json:"color" bson:"color"`
}

type RestrictionsUpdatedData struct {
	Prevent      bool      `json:"prevent" bson:"prevent"`
	Restrict     bool      `json:"restrict" bson:"restrict"`
	BlockedUntil time.Time `json:"blocked_until" bson:"blocked_until"`
}

type NGWordsUpdatedData struct {
	Count int `json:"count" bson:"count"`
}
