package consumers

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"costguardian/internal/metrics"
	"costguardian/pkg/logger"
	"costguardian/pkg/reconnect"
)

// processTimeout bounds the handling of one message, so shutdown
// never waits on a hung store
const processTimeout = 5 * time.Second

// readRetry paces ReadMessage retries while the broker is unreachable
var readRetry = reconnect.Config{
	MinBackoff: 500 * time.Millisecond,
	MaxBackoff: 30 * time.Second,
}

// MessageReader is the part of the Kafka consumer the loops need
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type handlerFunc func(ctx context.Context, msg kafka.Message) error

// consume reads until ctx is cancelled, handing each message to handle.
// Handler errors are logged and counted; the message is not retried.
func consume(ctx context.Context, name string, reader MessageReader, handle handlerFunc, log *logger.Logger) error {
	defer func() {
		if err := reader.Close(); err != nil {
			log.Warnw("Failed to close consumer", "consumer", name, "error", err)
		} else {
			log.Infow("Consumer closed", "consumer", name)
		}
	}()

	backoff := reconnect.NewBackoff(readRetry)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Infow("Consumer stopping (context cancelled)", "consumer", name)
				return nil
			}
			log.Warnw("Failed to read message, backing off",
				"consumer", name,
				"failures", backoff.Failures()+1,
				"error", err,
			)
			if backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		backoff.Reset()

		// Detached from ctx so the current message completes during shutdown
		processCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
		err = handle(processCtx, msg)
		cancel()

		metrics.RecordKafkaMessage(msg.Topic, err)
		if err != nil {
			log.Errorw("Failed to handle message",
				"consumer", name,
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			log.Infow("Consumer stopping after processing current message", "consumer", name)
			return nil
		}
	}
}
