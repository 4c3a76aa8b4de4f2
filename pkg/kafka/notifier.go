package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
)

// NotifierConfig holds consumer configuration for the notifier.
type NotifierConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Notifier is the push-notification consumer. It reads the social
// event stream independently of the HTTP path; delivery to an actual
// push provider is behind the Send hook so tests can intercept it.
type Notifier struct {
	reader *kafka.Reader
	logger ectologger.Logger
	config NotifierConfig

	// Send delivers one event to the notification provider. Defaults
	// to a structured log entry.
	Send func(ctx context.Context, event *SocialEvent) error

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
}

// NewNotifier creates a new notifier consumer
func NewNotifier(config NotifierConfig, logger ectologger.Logger) (*Notifier, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if config.GroupID == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		Topic:   config.Topic,
		GroupID: config.GroupID,
	})

	n := &Notifier{
		reader: reader,
		logger: logger,
		config: config,
	}
	n.Send = n.logEvent

	return n, nil
}

// Start begins consuming events in the background
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("notifier is already running")
	}
	n.running = true
	n.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go n.consumeLoop(ctx)

	n.logger.Infof("Notifier started for topic %s (group: %s)", n.config.Topic, n.config.GroupID)
	return nil
}

// Stop gracefully stops the notifier
func (n *Notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}
	n.running = false

	n.cancel()
	n.wg.Wait()

	return n.reader.Close()
}

func (n *Notifier) consumeLoop(ctx context.Context) {
	defer n.wg.Done()

	for {
		msg, err := n.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.WithError(err).Error("Failed to read social event")
			continue
		}

		var event SocialEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			n.logger.WithError(err).Error("Failed to decode social event")
			continue
		}

		// At-least-once: a failed send is logged and the offset still
		// advances; the provider dedupes on its side.
		if err := n.Send(ctx, &event); err != nil {
			n.logger.WithContext(ctx).WithError(err).WithField("event_type", event.EventType).Error("Failed to deliver notification")
		}
	}
}

func (n *Notifier) logEvent(ctx context.Context, event *SocialEvent) error {
	n.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":  event.EventType,
		"actor_id":    event.ActorID,
		"subject_ids": event.SubjectIDs,
	}).Info("Notification")
	return nil
}
