package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	cebinding "github.com/cloudevents/sdk-go/v2/binding"
	ceevent "github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/services"
)

var errInvalidEvent = errors.New("invalid event payload")

// incomingEvent is the plain JSON form of POST /v1/events.
type incomingEvent struct {
	Key     string            `json:"key"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Group   string            `json:"group"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

func (g *GatewayRoutes) handleEvent(c echo.Context) error {
	access, ok := eventAccessFrom(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, "missing access key")
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes+1))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid payload")
	}
	if len(body) > maxPayloadBytes {
		return writeError(c, http.StatusRequestEntityTooLarge, "payload too large")
	}

	var incoming incomingEvent
	if isCloudEvent(c.Request()) {
		incoming, err = decodeCloudEvent(c.Request(), body)
	} else {
		incoming, err = decodeJSONEvent(body)
	}
	if err != nil {
		return writeError(c, http.StatusBadRequest, err.Error())
	}

	event := domain.NewEvent(domain.Event{
		Key:         incoming.Key,
		Name:        incoming.Name,
		Type:        incoming.Type,
		Group:       firstNonEmpty(incoming.Group, access.Group),
		Environment: access.Environment,
		Ownership:   access.Ownership,
		AccessKeyID: access.ID,
		Platform:    access.Platform,
		Headers:     incoming.Headers,
		Body:        bodyText(incoming.Body),
	}, time.Now())

	if err := g.deps.Events.TryPush(event); err != nil {
		if errors.Is(err, services.ErrIngestBusy) || errors.Is(err, services.ErrPipelineClosed) {
			return writeError(c, http.StatusServiceUnavailable, "event ingestion busy")
		}
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{"id": event.ID})
}

func isCloudEvent(r *http.Request) bool {
	if r.Header.Get("Ce-Specversion") != "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get(echo.HeaderContentType))
	return err == nil && strings.HasPrefix(mediaType, "application/cloudevents")
}

func decodeCloudEvent(r *http.Request, body []byte) (incomingEvent, error) {
	req := &http.Request{
		Method: r.Method,
		Header: r.Header.Clone(),
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	message := cehttp.NewMessageFromHttpRequest(req)
	defer func() {
		_ = message.Finish(nil)
	}()

	cloudEvent, err := cebinding.ToEvent(r.Context(), message)
	if err != nil {
		return incomingEvent{}, errInvalidEvent
	}
	if err := cloudEvent.Validate(); err != nil {
		return incomingEvent{}, errInvalidEvent
	}
	return fromCloudEvent(cloudEvent), nil
}

func fromCloudEvent(event *ceevent.Event) incomingEvent {
	incoming := incomingEvent{
		Key:  event.ID(),
		Type: event.Type(),
		Name: firstNonEmpty(event.Subject(), event.Type()),
	}
	if group, ok := event.Extensions()["group"].(string); ok {
		incoming.Group = group
	}
	if data := event.Data(); len(data) > 0 {
		if json.Valid(data) {
			incoming.Body = json.RawMessage(data)
		} else {
			quoted, _ := json.Marshal(string(data))
			incoming.Body = quoted
		}
	}
	return incoming
}

func decodeJSONEvent(body []byte) (incomingEvent, error) {
	var incoming incomingEvent
	if err := json.Unmarshal(body, &incoming); err != nil {
		return incomingEvent{}, errInvalidEvent
	}
	incoming.Name = strings.TrimSpace(incoming.Name)
	incoming.Type = strings.TrimSpace(incoming.Type)
	if incoming.Name == "" {
		return incomingEvent{}, errors.New("event name is required")
	}
	return incoming, nil
}

// bodyText keeps a JSON string body unquoted and any other JSON value verbatim.
func bodyText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
