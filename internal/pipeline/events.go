package pipeline

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventStatus       EventType = "status"
	EventOutlineChunk EventType = "outline_chunk"
	EventDetailChunk  EventType = "detail_chunk"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// Event is one record on an answer stream. Done carries Outline and Detail;
// every other type carries Content.
type Event struct {
	Type    EventType
	Content string
	Outline string
	Detail  string
}

func StatusEvent(message string) Event {
	return Event{Type: EventStatus, Content: message}
}

func ErrorEvent(message string) Event {
	return Event{Type: EventError, Content: message}
}

func DoneEvent(outline, detail string) Event {
	return Event{Type: EventDone, Outline: outline, Detail: detail}
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

type contentRecord struct {
	Type    EventType `json:"type"`
	Content string    `json:"content"`
}

type doneRecord struct {
	Type    EventType `json:"type"`
	Outline string    `json:"outline"`
	Detail  string    `json:"detail"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Type == EventDone {
		return json.Marshal(doneRecord{Type: e.Type, Outline: e.Outline, Detail: e.Detail})
	}
	return json.Marshal(contentRecord{Type: e.Type, Content: e.Content})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    EventType `json:"type"`
		Content string    `json:"content"`
		Outline string    `json:"outline"`
		Detail  string    `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case EventStatus, EventOutlineChunk, EventDetailChunk, EventDone, EventError:
	default:
		return fmt.Errorf("unknown event type %q", raw.Type)
	}

	*e = Event{Type: raw.Type, Content: raw.Content, Outline: raw.Outline, Detail: raw.Detail}
	return nil
}

// SSEFrame renders e as one server-sent-events data block.
func SSEFrame(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}
