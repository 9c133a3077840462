// Package events publishes game telemetry (star spawns, collections,
// achievement unlocks) to a Kafka topic. Publication is best-effort:
// the game loop never blocks on the broker, and a disabled pipeline
// degrades to a no-op.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/skysquad-server/internal/config"
)

// Event types emitted by the game.
const (
	EventStarSpawned         = "star_spawned"
	EventStarCollected       = "star_collected"
	EventAchievementUnlocked = "achievement_unlocked"
	EventPlayerJoined        = "player_joined"
)

// Event is the wire format for one telemetry record.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Publisher emits telemetry events.
type Publisher interface {
	Publish(eventType string, data any)
	Close() error
}

// NopPublisher drops all events. Used when the pipeline is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) {}
func (NopPublisher) Close() error        { return nil }

// KafkaPublisher sends events through a sarama async producer.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewKafkaPublisher creates and starts a Kafka-backed publisher.
func NewKafkaPublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushFrequency
	saramaConfig.Producer.Flush.Messages = cfg.FlushMessages
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	// Drain producer errors so delivery failures surface in logs
	// without backing up the game loop.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Warn("event delivery failed", "topic", p.topic, "error", err.Err)
		}
	}()

	return p, nil
}

// Publish enqueues an event. It never blocks: if the producer input
// buffer is full, the event is dropped.
func (p *KafkaPublisher) Publish(eventType string, data any) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", "type", eventType, "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(eventType),
		Value: sarama.ByteEncoder(payload),
	}

	select {
	case p.producer.Input() <- msg:
	default:
		p.logger.Warn("event buffer full, dropping event", "type", eventType)
	}
}

// Close flushes pending events and shuts the producer down.
func (p *KafkaPublisher) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
