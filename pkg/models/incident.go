package models

import (
	"errors"
	"strings"
)

// Metadata carries optional facts about an incident supplied by the channel
// it arrived on. Pointer fields distinguish "absent" from zero.
type Metadata struct {
	TicketID       string `json:"ticket_id,omitempty"`
	Product        string `json:"product,omitempty"`
	FollowerCount  *int   `json:"follower_count,omitempty"`
	Engagement5Min *int   `json:"engagement_5min,omitempty"`
	RepeatContact  *bool  `json:"repeat_contact,omitempty"`
}

// Followers returns the follower count, or 0 when absent.
func (m Metadata) Followers() int {
	if m.FollowerCount == nil {
		return 0
	}
	return *m.FollowerCount
}

// Engagement returns the five-minute engagement count, or 0 when absent.
func (m Metadata) Engagement() int {
	if m.Engagement5Min == nil {
		return 0
	}
	return *m.Engagement5Min
}

// IsRepeatContact reports the channel's repeat-contact flag.
func (m Metadata) IsRepeatContact() bool {
	return m.RepeatContact != nil && *m.RepeatContact
}

// Incident is one unit of customer-originated text to be triaged. It is
// created by the caller and never mutated by the pipeline.
type Incident struct {
	EventID   string   `json:"event_id"`
	Source    string   `json:"source"`
	Timestamp string   `json:"timestamp"`
	ActorType string   `json:"actor_type,omitempty"`
	ActorID   string   `json:"actor_id,omitempty"`
	ThreadID  string   `json:"thread_id,omitempty"`
	Text      string   `json:"text"`
	Metadata  Metadata `json:"metadata"`
}

var (
	ErrMissingEventID = errors.New("event_id is required")
	ErrMissingText    = errors.New("text is required")
)

// Validate checks the fields the pipeline cannot work without.
func (i *Incident) Validate() error {
	if strings.TrimSpace(i.EventID) == "" {
		return ErrMissingEventID
	}
	if strings.TrimSpace(i.Text) == "" {
		return ErrMissingText
	}
	return nil
}
