package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownArchiveEvent is returned when decoding an envelope with an unrecognised type.
var ErrUnknownArchiveEvent = errors.New("unknown archive event type")

// ArchiveEventType discriminates the archive lifecycle stages.
type ArchiveEventType string

const (
	ArchiveStartedType   ArchiveEventType = "started"
	ArchiveDumpedType    ArchiveEventType = "dumped"
	ArchiveFailedType    ArchiveEventType = "failed"
	ArchiveCompletedType ArchiveEventType = "completed"
)

// ArchiveEvent is one stage of an archival job. The set of implementations is closed.
type ArchiveEvent interface {
	// Reference identifies the archival job the event describes.
	Reference() string
	Type() ArchiveEventType
	sealed()
}

// ArchiveStarted marks the beginning of a job over one collection.
type ArchiveStarted struct {
	ID         string `json:"_id"`
	JobID      string `json:"reference"`
	Collection string `json:"collection"`
	StartedAt  int64  `json:"startedAt"`
}

// ArchiveDumped marks the collection dump as written.
type ArchiveDumped struct {
	ID       string `json:"_id"`
	JobID    string `json:"reference"`
	DumpedAt int64  `json:"dumpedAt"`
}

// ArchiveFailed marks a job that will not complete.
type ArchiveFailed struct {
	ID       string `json:"_id"`
	JobID    string `json:"reference"`
	Reason   string `json:"reason"`
	FailedAt int64  `json:"failedAt"`
}

// ArchiveCompleted marks a job whose output is durable at Path.
type ArchiveCompleted struct {
	ID          string `json:"_id"`
	JobID       string `json:"reference"`
	Path        string `json:"path"`
	CompletedAt int64  `json:"completedAt"`
}

func (e ArchiveStarted) Reference() string   { return e.JobID }
func (e ArchiveDumped) Reference() string    { return e.JobID }
func (e ArchiveFailed) Reference() string    { return e.JobID }
func (e ArchiveCompleted) Reference() string { return e.JobID }

func (ArchiveStarted) Type() ArchiveEventType   { return ArchiveStartedType }
func (ArchiveDumped) Type() ArchiveEventType    { return ArchiveDumpedType }
func (ArchiveFailed) Type() ArchiveEventType    { return ArchiveFailedType }
func (ArchiveCompleted) Type() ArchiveEventType { return ArchiveCompletedType }

func (ArchiveStarted) sealed()   {}
func (ArchiveDumped) sealed()    {}
func (ArchiveFailed) sealed()    {}
func (ArchiveCompleted) sealed() {}

type archiveEnvelope struct {
	Type ArchiveEventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// MarshalArchiveEvent encodes event with its type discriminator.
func MarshalArchiveEvent(event ArchiveEvent) ([]byte, error) {
	if event == nil {
		return nil, errors.New("archive event is nil")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(archiveEnvelope{Type: event.Type(), Data: data})
}

// UnmarshalArchiveEvent decodes an envelope produced by MarshalArchiveEvent.
func UnmarshalArchiveEvent(raw []byte) (ArchiveEvent, error) {
	var envelope archiveEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	switch envelope.Type {
	case ArchiveStartedType:
		return decodeArchive[ArchiveStarted](envelope.Data)
	case ArchiveDumpedType:
		return decodeArchive[ArchiveDumped](envelope.Data)
	case ArchiveFailedType:
		return decodeArchive[ArchiveFailed](envelope.Data)
	case ArchiveCompletedType:
		return decodeArchive[ArchiveCompleted](envelope.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownArchiveEvent, envelope.Type)
	}
}

func decodeArchive[T ArchiveEvent](data json.RawMessage) (ArchiveEvent, error) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return event, nil
}
