package ports

import (
	"context"

	"github.com/segmentio/analytics-go/v3"
)

// AnalyticsBatcher buffers track messages for an external analytics sink.
// It is owned by a single consumer goroutine.
type AnalyticsBatcher interface {
	// Push appends msg, sending the current batch first when msg would not fit.
	Push(ctx context.Context, msg analytics.Track) error
	// Flush sends whatever is buffered. The buffer is empty afterwards even on error.
	Flush(ctx context.Context) error
}

// SecretsClient is the encryption capability shared with collaborators.
type SecretsClient interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}
