package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/integrationos/gateway/pkg/eventpublisher"
)

type payload struct {
	Reference string    `json:"reference"`
	Sequence  int       `json:"sequence"`
	SentAt    time.Time `json:"sentAt"`
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, interval, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := eventpublisher.Client{Endpoint: cfg.BaseURL, Secret: cfg.Secret, Timeout: 10 * time.Second}
	for sequence := 1; ; sequence++ {
		if err := sendEvent(ctx, client, cfg, sequence); err != nil {
			fmt.Fprintln(os.Stderr, "event error:", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func loadConfig(path string) (config, time.Duration, error) {
	if strings.TrimSpace(path) == "" {
		return config{}, 0, fmt.Errorf("config path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return config{}, 0, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, 0, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	cfg.Group = strings.TrimSpace(cfg.Group)
	cfg.Source = strings.TrimSpace(cfg.Source)
	cfg.Interval = strings.TrimSpace(cfg.Interval)
	names := cfg.Names[:0]
	for _, name := range cfg.Names {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	cfg.Names = names

	if cfg.BaseURL == "" || cfg.Secret == "" || len(cfg.Names) == 0 {
		return config{}, 0, fmt.Errorf("config must include base_url, secret, names")
	}
	if cfg.Interval == "" {
		return config{}, 0, fmt.Errorf("interval must be provided")
	}

	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil {
		return config{}, 0, fmt.Errorf("invalid interval duration: %w", err)
	}
	if interval <= 0 {
		return config{}, 0, fmt.Errorf("interval must be positive")
	}

	return cfg, interval, nil
}

func sendEvent(ctx context.Context, client eventpublisher.Client, cfg config, sequence int) error {
	ref, err := randomSHA(7)
	if err != nil {
		return fmt.Errorf("failed to generate reference: %w", err)
	}
	pick, err := rand.Int(rand.Reader, big.NewInt(int64(len(cfg.Names))))
	if err != nil {
		return fmt.Errorf("failed to pick event name: %w", err)
	}
	name := cfg.Names[pick.Int64()]

	body, err := json.Marshal(payload{Reference: ref, Sequence: sequence, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	id, err := client.Publish(ctx, eventpublisher.Event{
		Name:   name,
		Group:  cfg.Group,
		Source: cfg.Source,
		Body:   body,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Event %s accepted as %s (ref %s)\n", name, id, ref)
	return nil
}

func randomSHA(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length")
	}
	raw := make([]byte, (length+1)/2)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw)[:length], nil
}
