package eventpublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudevents/sdk-go/v2/binding"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

const secretHeader = "X-IntegrationOS-Secret"

// Publish sends the event in binary CloudEvents mode and returns the id
// the gateway assigned to it.
func (c Client) Publish(ctx context.Context, event Event) (string, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	secret := strings.TrimSpace(c.Secret)
	if endpoint == "" || secret == "" {
		return "", fmt.Errorf("endpoint/secret are required")
	}

	e, err := BuildCloudEvent(event)
	if err != nil {
		return "", err
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		timeout := c.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	requestURL := strings.TrimRight(endpoint, "/") + "/v1/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if err := cehttp.WriteRequest(ctx, binding.ToMessage(&e), req); err != nil {
		return "", fmt.Errorf("encode cloudevent: %w", err)
	}
	req.Header.Set(secretHeader, secret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("event rejected: status=%s body=%s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &accepted); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return accepted.ID, nil
}
