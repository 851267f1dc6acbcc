package models

import (
	"errors"
	"fmt"
)

// ErrInvalidMessage is returned when a payload does not have the shape of a chat message.
var ErrInvalidMessage = errors.New("invalid message")

// Message represents a chat message as returned by the platform API or
// pushed by an outgoing integration.
type Message struct {
	ID              string   `json:"id"`
	RoomID          string   `json:"roomId"`
	RoomType        string   `json:"roomType,omitempty"` // "direct" or "group"
	ParentID        string   `json:"parentId,omitempty"` // For threading
	PersonID        string   `json:"personId"`
	PersonEmail     string   `json:"personEmail"`
	Text            string   `json:"text,omitempty"`
	Markdown        string   `json:"markdown,omitempty"`
	HTML            string   `json:"html,omitempty"`
	Files           []string `json:"files,omitempty"` // Attachment URLs
	MentionedPeople []string `json:"mentionedPeople,omitempty"`
	MentionedGroups []string `json:"mentionedGroups,omitempty"`
	Created         string   `json:"created"`
}

// Validate checks that the message carries its identity fields, a creation
// timestamp, and some content (text or files).
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidMessage)
	}

	required := []struct{ name, value string }{
		{"id", m.ID},
		{"personId", m.PersonID},
		{"personEmail", m.PersonEmail},
		{"roomId", m.RoomID},
		{"created", m.Created},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidMessage, f.name)
		}
	}

	if m.Text == "" && len(m.Files) == 0 {
		return fmt.Errorf("%w: neither text nor files present", ErrInvalidMessage)
	}

	return nil
}

// HasFiles reports whether the message references attachments.
func (m *Message) HasFiles() bool {
	return len(m.Files) > 0
}
