// Package openapi renders the unified API description from the common model catalogue.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// ErrNotReady is returned while the first generation is still running.
var ErrNotReady = errors.New("openapi document is still generating")

// Data holds the most recent rendered document. It is safe for concurrent use.
type Data struct {
	mu          sync.RWMutex
	status      Status
	json        []byte
	yaml        []byte
	err         error
	generatedAt time.Time

	version string
	log     *slog.Logger
}

func NewData(version string, log *slog.Logger) *Data {
	if log == nil {
		log = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Data{status: StatusPending, version: version, log: log.With("component", "openapi")}
}

// SpawnGeneration renders the document in the background. The returned channel is
// closed once the attempt has finished.
func (d *Data) SpawnGeneration(ctx context.Context, models ports.Store[domain.CommonModel], enums ports.Store[domain.CommonEnum]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		started := time.Now()
		if err := d.Generate(ctx, models, enums); err != nil {
			d.log.Error("openapi_generation_failed", "error", err)
			return
		}
		d.log.Info("openapi_generated", "duration_ms", time.Since(started).Milliseconds())
	}()
	return done
}

// Generate loads the catalogue and replaces the held document. A failure keeps
// the previous document if there is one.
func (d *Data) Generate(ctx context.Context, models ports.Store[domain.CommonModel], enums ports.Store[domain.CommonEnum]) error {
	jsonDoc, yamlDoc, err := d.render(ctx, models, enums)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.err = err
		if d.status != StatusReady {
			d.status = StatusFailed
		}
		return err
	}
	d.status = StatusReady
	d.json = jsonDoc
	d.yaml = yamlDoc
	d.err = nil
	d.generatedAt = time.Now().UTC()
	return nil
}

func (d *Data) render(ctx context.Context, models ports.Store[domain.CommonModel], enums ports.Store[domain.CommonEnum]) ([]byte, []byte, error) {
	live := ports.Filter{"deleted": false}
	modelRows, err := models.GetMany(ctx, live, ports.ListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("load common models: %w", err)
	}
	enumRows, err := enums.GetMany(ctx, live, ports.ListOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("load common enums: %w", err)
	}

	doc := build(d.version, modelRows, enumRows)
	jsonDoc, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode openapi json: %w", err)
	}
	yamlDoc, err := yaml.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("encode openapi yaml: %w", err)
	}
	return jsonDoc, yamlDoc, nil
}

func (d *Data) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Data) JSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.readyErr(); err != nil {
		return nil, err
	}
	return d.json, nil
}

func (d *Data) YAML() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.readyErr(); err != nil {
		return nil, err
	}
	return d.yaml, nil
}

func (d *Data) readyErr() error {
	switch d.status {
	case StatusReady:
		return nil
	case StatusFailed:
		return d.err
	default:
		return ErrNotReady
	}
}
