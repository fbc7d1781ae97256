package eventpublisher

import (
	"net/http"
	"time"
)

// Client publishes events to a gateway's /v1/events endpoint.
type Client struct {
	Endpoint   string
	Secret     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Event is the caller-facing shape of a published event. Body must be
// valid JSON when set.
type Event struct {
	Name   string
	Type   string
	Group  string
	Key    string
	Source string
	Body   []byte
}
