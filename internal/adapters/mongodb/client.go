// Package mongodb implements the store façade over a MongoDB control database.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Recorder receives the timing of every store operation. observability.Metrics satisfies it.
type Recorder interface {
	ObserveStoreOperation(system, collection, operation string, elapsed time.Duration, err error)
}

// Client is a connected handle on one database.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
	recorder Recorder
}

// Connect dials uri and verifies the primary is reachable. recorder may be nil.
func Connect(ctx context.Context, uri, database string, recorder Recorder) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetAppName("gateway"))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Client{client: client, database: client.Database(database), recorder: recorder}, nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping checks the primary is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}
