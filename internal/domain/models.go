package domain

import (
	"strings"
	"time"
)

// MessageCode identifies the kind of message exchanged with the accessory.
type MessageCode uint8

const (
	// MsgDisplayText carries UTF-8 text to be drawn on the accessory display.
	MsgDisplayText MessageCode = 0x0a
	// MsgTapSubscription turns tap notifications on ("1") or off ("0").
	MsgTapSubscription MessageCode = 0x10
)

// Message is one outbound accessory message.
type Message struct {
	Code    MessageCode `json:"code"`
	Payload string      `json:"payload"`
}

// ExposureSettings mirrors the accessory's auto-exposure controls.
type ExposureSettings struct {
	AutoExpGainTimes int     `json:"auto_exp_gain_times" yaml:"auto_exp_gain_times"`
	MeteringMode     string  `json:"metering_mode" yaml:"metering_mode"`
	ExposureSpeed    float64 `json:"exposure_speed" yaml:"exposure_speed"`
	ShutterLimit     int     `json:"shutter_limit" yaml:"shutter_limit"`
	GainLimit        int     `json:"gain_limit" yaml:"gain_limit"`
}

// CaptureSettings is sent with every capture request.
type CaptureSettings struct {
	Quality  int              `json:"quality"`
	Exposure ExposureSettings `json:"exposure"`
}

// CaptureMetadata describes how an image was taken.
type CaptureMetadata struct {
	Quality    int              `json:"quality"`
	Exposure   ExposureSettings `json:"exposure"`
	ByteSize   int              `json:"byte_size"`
	Elapsed    time.Duration    `json:"elapsed"`
	CapturedAt time.Time        `json:"captured_at"`
}

// CapturedImage is a compressed image returned by the accessory camera.
// The byte slice must not be modified once the image is built.
type CapturedImage struct {
	Data     []byte
	Metadata CaptureMetadata
}

// RecognizedLine is one line reported by a recognizer.
type RecognizedLine struct {
	Text string  `json:"text"`
	Top  float64 `json:"top"`
}

// RecognizedBlock is one region of text as reported by a recognizer,
// in whatever order the recognizer chose.
type RecognizedBlock struct {
	Top   float64          `json:"top"`
	Lines []RecognizedLine `json:"lines"`
}

// TextBlock is a recognized region in display order.
type TextBlock struct {
	Lines          []string
	Top            float64
	Translated     string
	TranslationErr error
}

// Source returns the recognized text with one line per recognized line.
func (b TextBlock) Source() string {
	return strings.Join(b.Lines, "\n")
}

// DisplayText returns the translation when one exists, otherwise the source text.
func (b TextBlock) DisplayText() string {
	if b.Translated != "" {
		return b.Translated
	}
	return b.Source()
}

// Page is an ordered run of display lines that fits the screen.
type Page []string

// SessionState is the capture controller state.
type SessionState int

const (
	StateIdle SessionState = iota
	StateCapturing
	StateExtracting
	StatePaginating
	StateCancelling
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateExtracting:
		return "extracting"
	case StatePaginating:
		return "paginating"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON and YAML output.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventType represents the type of stream event
type EventType string

const (
	EventCycleStart        EventType = "cycle_start"
	EventStateChange       EventType = "state_change"
	EventPageShown         EventType = "page_shown"
	EventTranslationFailed EventType = "translation_failed"
	EventError             EventType = "error"
	EventCancelled         EventType = "cancelled"
	EventComplete          EventType = "complete"
)

// StreamEvent represents an event emitted by the capture controller
type StreamEvent struct {
	Type      EventType    `json:"type"`
	CycleID   string       `json:"cycle_id,omitempty"`
	State     SessionState `json:"state"`
	Payload   interface{}  `json:"payload,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Snapshot is an immutable view of the controller for presentation layers.
type Snapshot struct {
	State     SessionState     `json:"state"`
	CycleID   string           `json:"cycle_id,omitempty"`
	Page      []string         `json:"page"`
	PageIndex int              `json:"page_index"`
	PageCount int              `json:"page_count"`
	Status    string           `json:"status,omitempty"`
	Metadata  *CaptureMetadata `json:"metadata,omitempty"`
}

// CaptureRecord is an archived, completed capture cycle.
type CaptureRecord struct {
	ID         string          `json:"id"`
	CapturedAt time.Time       `json:"captured_at"`
	Metadata   CaptureMetadata `json:"metadata"`
	Recognized []string        `json:"recognized"`
	Translated []string        `json:"translated,omitempty"`
}
