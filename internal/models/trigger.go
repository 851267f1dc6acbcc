package models

import (
	"errors"
	"fmt"
)

// Resources and events the platform emits for webhooks.
const (
	ResourceMessages = "messages"

	EventCreated = "created"
)

// ErrInvalidTrigger is returned when a webhook envelope lacks its identifying fields.
var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger is the event notification the platform posts to a registered webhook.
// It references the affected resource by id in Data but does not carry its content.
type Trigger struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	TargetURL string       `json:"targetUrl,omitempty"`
	Resource  string       `json:"resource"`
	Event     string       `json:"event"`
	Filter    string       `json:"filter,omitempty"`
	OrgID     string       `json:"orgId,omitempty"`
	CreatedBy string       `json:"createdBy,omitempty"`
	AppID     string       `json:"appId,omitempty"`
	OwnedBy   string       `json:"ownedBy,omitempty"`
	Status    string       `json:"status,omitempty"`
	ActorID   string       `json:"actorId,omitempty"`
	Created   string       `json:"created,omitempty"`
	Data      *TriggerData `json:"data"`
}

// TriggerData is the resource reference nested in a Trigger.
type TriggerData struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId,omitempty"`
	RoomType    string `json:"roomType,omitempty"`
	PersonID    string `json:"personId,omitempty"`
	PersonEmail string `json:"personEmail,omitempty"`
	Created     string `json:"created,omitempty"`
}

// Validate checks that the trigger names the webhook that fired and the
// resource/event it fired for.
func (t *Trigger) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidTrigger)
	}

	required := []struct{ name, value string }{
		{"id", t.ID},
		{"name", t.Name},
		{"resource", t.Resource},
		{"event", t.Event},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidTrigger, f.name)
		}
	}

	return nil
}

// MessageID returns the id of the referenced resource, or "" if the trigger carries none.
func (t *Trigger) MessageID() string {
	if t == nil || t.Data == nil {
		return ""
	}
	return t.Data.ID
}

// Kind returns the "resource/event" pair used in logs and metrics.
func (t *Trigger) Kind() string {
	return t.Resource + "/" + t.Event
}
