package models

import (
	"errors"
	"fmt"
	"strings"
)

// Topic is the subject-matter classification of an incident.
type Topic string

const (
	TopicBug     Topic = "bug"
	TopicBilling Topic = "billing"
	TopicOutage  Topic = "outage"
	TopicAccount Topic = "account"
	TopicFraud   Topic = "fraud"
	TopicPolicy  Topic = "policy"
	TopicService Topic = "service"
	TopicOther   Topic = "other"
)

// Topics lists every topic in classification order.
var Topics = []Topic{TopicBug, TopicBilling, TopicOutage, TopicAccount, TopicFraud, TopicPolicy, TopicService, TopicOther}

func (t Topic) Valid() bool {
	switch t {
	case TopicBug, TopicBilling, TopicOutage, TopicAccount, TopicFraud, TopicPolicy, TopicService, TopicOther:
		return true
	}
	return false
}

// Intent is what the customer is trying to achieve.
type Intent string

const (
	IntentBugReport          Intent = "bug_report"
	IntentComplaint          Intent = "complaint"
	IntentRefundRequest      Intent = "refund_request"
	IntentCancellationThreat Intent = "cancellation_threat"
	IntentLegalThreat        Intent = "legal_threat"
	IntentInformationRequest Intent = "information_request"
	IntentOther              Intent = "other"
)

var Intents = []Intent{IntentBugReport, IntentComplaint, IntentRefundRequest, IntentCancellationThreat, IntentLegalThreat, IntentInformationRequest, IntentOther}

func (i Intent) Valid() bool {
	switch i {
	case IntentBugReport, IntentComplaint, IntentRefundRequest, IntentCancellationThreat,
		IntentLegalThreat, IntentInformationRequest, IntentOther:
		return true
	}
	return false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Flags are boolean risk markers derived from text and metadata.
type Flags struct {
	ViralityThreat      bool `json:"virality_threat"`
	RepeatContact       bool `json:"repeat_contact"`
	HighReach           bool `json:"high_reach"`
	ComplianceSensitive bool `json:"compliance_sensitive"`
}

// Or merges other into f; a flag set in either stays set.
func (f Flags) Or(other Flags) Flags {
	return Flags{
		ViralityThreat:      f.ViralityThreat || other.ViralityThreat,
		RepeatContact:       f.RepeatContact || other.RepeatContact,
		HighReach:           f.HighReach || other.HighReach,
		ComplianceSensitive: f.ComplianceSensitive || other.ComplianceSensitive,
	}
}

// EvidenceQuote is a verbatim excerpt backing a classification.
type EvidenceQuote struct {
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Quote     string `json:"quote"`
}

// SignalExtraction is the classified view of one incident.
type SignalExtraction struct {
	Topic     Topic           `json:"topic"`
	Intent    Intent          `json:"intent"`
	Sentiment Sentiment       `json:"sentiment"`
	Urgency   Urgency         `json:"urgency"`
	Signals   Flags           `json:"signals"`
	Evidence  []EvidenceQuote `json:"evidence"`
	Summary   string          `json:"summary"`
}

var ErrInvalidSignals = errors.New("invalid signal extraction")

// Validate checks enum membership and required fields. Evidence grounding is
// checked by the extractor, which knows the source texts.
func (s *SignalExtraction) Validate() error {
	if !s.Topic.Valid() {
		return fmt.Errorf("%w: topic %q", ErrInvalidSignals, s.Topic)
	}
	if !s.Intent.Valid() {
		return fmt.Errorf("%w: intent %q", ErrInvalidSignals, s.Intent)
	}
	if !s.Sentiment.Valid() {
		return fmt.Errorf("%w: sentiment %q", ErrInvalidSignals, s.Sentiment)
	}
	if !s.Urgency.Valid() {
		return fmt.Errorf("%w: urgency %q", ErrInvalidSignals, s.Urgency)
	}
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("%w: empty summary", ErrInvalidSignals)
	}
	return nil
}
