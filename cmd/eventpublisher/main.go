package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/integrationos/gateway/pkg/eventpublisher"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded:", err)
	}
	v := viper.New()
	v.AutomaticEnv()

	endpoint := flag.String("endpoint", strings.TrimSpace(v.GetString("GATEWAY_ENDPOINT")), "Gateway base URL (or GATEWAY_ENDPOINT)")
	secret := flag.String("secret", strings.TrimSpace(v.GetString("GATEWAY_SECRET")), "Access key secret (or GATEWAY_SECRET)")
	name := flag.String("name", "", "Event name")
	eventType := flag.String("type", "", "Event type (optional)")
	group := flag.String("group", "", "Event group (optional)")
	key := flag.String("key", "", "Idempotency key, used as the CloudEvent id (optional)")
	data := flag.String("data", "", "JSON body (optional)")
	source := flag.String("source", strings.TrimSpace(v.GetString("GATEWAY_EVENT_SOURCE")), "Event source")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	flag.Parse()

	if strings.TrimSpace(*endpoint) == "" || strings.TrimSpace(*secret) == "" {
		exitErr("endpoint/secret are required (or set GATEWAY_ENDPOINT, GATEWAY_SECRET)")
	}

	client := eventpublisher.Client{
		Endpoint: strings.TrimSpace(*endpoint),
		Secret:   strings.TrimSpace(*secret),
		Timeout:  *timeout,
	}
	id, err := client.Publish(context.Background(), eventpublisher.Event{
		Name:   strings.TrimSpace(*name),
		Type:   strings.TrimSpace(*eventType),
		Group:  strings.TrimSpace(*group),
		Key:    strings.TrimSpace(*key),
		Source: strings.TrimSpace(*source),
		Body:   []byte(strings.TrimSpace(*data)),
	})
	if err != nil {
		exitErr(err.Error())
	}

	fmt.Printf("Published %s as %s\n", strings.TrimSpace(*name), id)
}

func exitErr(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
