package eventpublisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ceevent "github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
)

const (
	defaultSource = "integrationos/eventpublisher"
	defaultType   = "integrationos.event"
	groupExt      = "group"
)

var ErrMissingName = errors.New("event name is required")

// BuildCloudEvent maps an Event onto a CloudEvent. The key becomes the
// CloudEvent id and the name its subject, which is how the gateway reads
// them back.
func BuildCloudEvent(event Event) (ceevent.Event, error) {
	name := strings.TrimSpace(event.Name)
	if name == "" {
		return ceevent.Event{}, ErrMissingName
	}

	e := ceevent.New()
	e.SetID(firstNonEmpty(event.Key, uuid.NewString()))
	e.SetSource(firstNonEmpty(event.Source, defaultSource))
	e.SetType(firstNonEmpty(event.Type, defaultType))
	e.SetSubject(name)
	if group := strings.TrimSpace(event.Group); group != "" {
		e.SetExtension(groupExt, group)
	}
	if len(event.Body) > 0 {
		if !json.Valid(event.Body) {
			return ceevent.Event{}, fmt.Errorf("event body is not valid json")
		}
		if err := e.SetData(ceevent.ApplicationJSON, event.Body); err != nil {
			return ceevent.Event{}, fmt.Errorf("set data: %w", err)
		}
	}
	if err := e.Validate(); err != nil {
		return ceevent.Event{}, fmt.Errorf("invalid cloudevent: %w", err)
	}
	return e, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
