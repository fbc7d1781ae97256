package domain

import (
	"strings"
	"time"

	"github.com/segmentio/analytics-go/v3"
)

// MetricType names the counter family a metric increments.
type MetricType string

const (
	// MetricPassthrough counts raw calls proxied to a platform.
	MetricPassthrough MetricType = "passthrough"
	// MetricUnified counts calls served through a common model.
	MetricUnified MetricType = "unified"
	// MetricRateLimited counts requests rejected by the rate limiter.
	MetricRateLimited MetricType = "rateLimited"
)

const (
	metricTotalKey     = "total"
	metricDailyKey     = "daily"
	metricMonthlyKey   = "monthly"
	metricPlatformsKey = "platforms"
)

// MetricDocument is the persisted aggregate a metric is merged into.
type MetricDocument map[string]any

// Metric is one measurable occurrence attributed to a tenant.
type Metric struct {
	Type          MetricType
	Ownership     Ownership
	Platform      string
	ConnectionKey string
	Action        string
	Date          time.Time
}

// NewPassthroughMetric records a passthrough call made with conn.
func NewPassthroughMetric(conn Connection, now time.Time) Metric {
	return Metric{
		Type:          MetricPassthrough,
		Ownership:     conn.Ownership,
		Platform:      conn.Platform,
		ConnectionKey: conn.Key,
		Date:          now.UTC(),
	}
}

// NewUnifiedMetric records a unified call performing action with conn.
func NewUnifiedMetric(conn Connection, action string, now time.Time) Metric {
	return Metric{
		Type:          MetricUnified,
		Ownership:     conn.Ownership,
		Platform:      conn.Platform,
		ConnectionKey: conn.Key,
		Action:        action,
		Date:          now.UTC(),
	}
}

// NewRateLimitedMetric records a rejected request made with access.
func NewRateLimitedMetric(access EventAccess, key string, now time.Time) Metric {
	return Metric{
		Type:          MetricRateLimited,
		Ownership:     access.Ownership,
		Platform:      access.Platform,
		ConnectionKey: key,
		Date:          now.UTC(),
	}
}

// OwnerID is the tenant key the per-tenant aggregate is upserted under.
func (m Metric) OwnerID() string {
	return m.Ownership.ClientID
}

// UpdateDoc builds the upsert document merging m into an aggregate.
func (m Metric) UpdateDoc() map[string]any {
	date := m.Date.UTC()
	if date.IsZero() {
		date = time.Now().UTC()
	}
	daily := date.Format("2006-01-02")
	monthly := date.Format("2006-01")
	kind := string(m.Type)
	platform := kind + "." + metricPlatformsKey + "." + pathSegment(m.Platform)

	inc := make(map[string]any, 6)
	for _, prefix := range []string{kind, platform} {
		inc[prefix+"."+metricTotalKey] = 1
		inc[prefix+"."+metricDailyKey+"."+daily] = 1
		inc[prefix+"."+metricMonthlyKey+"."+monthly] = 1
	}
	ts := date.UnixMilli()
	return map[string]any{
		"$inc":         inc,
		"$set":         map[string]any{"updatedAt": ts},
		"$setOnInsert": map[string]any{"createdAt": ts},
	}
}

// TrackMessage translates m into an analytics track call.
func (m Metric) TrackMessage() analytics.Track {
	userID := m.Ownership.UserID
	if userID == "" {
		userID = m.Ownership.ClientID
	}
	properties := analytics.NewProperties().
		Set("clientId", m.Ownership.ClientID).
		Set("platform", m.Platform).
		Set("connectionKey", m.ConnectionKey)
	if m.Action != "" {
		properties = properties.Set("action", m.Action)
	}
	return analytics.Track{
		UserId:     userID,
		Event:      m.Type.eventName(),
		Timestamp:  m.Date,
		Properties: properties,
	}
}

func (t MetricType) eventName() string {
	switch t {
	case MetricPassthrough:
		return "Called Passthrough API"
	case MetricUnified:
		return "Called Unified API"
	case MetricRateLimited:
		return "Reached Rate Limit"
	default:
		return "Recorded " + string(t)
	}
}

// pathSegment keeps a value usable as a single dotted-path segment.
func pathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	value = strings.ReplaceAll(value, ".", "_")
	return strings.TrimLeft(value, "$")
}
