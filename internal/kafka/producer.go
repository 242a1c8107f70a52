package kafka

import (
	"encoding/json"
	"sync"
	"time"

	"friends-scoreboard/internal/config"
	"friends-scoreboard/internal/events"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventMatchRecorded EventType = "match_recorded"
)

const queueSize = 64

// ScoreboardEvent is the envelope written to the events topic.
type ScoreboardEvent struct {
	Type      EventType `json:"type"`
	MatchID   string    `json:"matchId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type MatchRecordedData struct {
	GameID   string    `json:"gameId"`
	PlayedAt time.Time `json:"playedAt"`
	DaySeq   *int      `json:"daySeq,omitempty"`
	Players  []string  `json:"players"`
	Winners  []string  `json:"winners"`
}

// Producer forwards recorded matches to Kafka. A producer without brokers
// is disabled and drops every event.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan ScoreboardEvent
	wg     sync.WaitGroup
}

func NewProducer(cfg *config.Config, logger zerolog.Logger) *Producer {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info().Msg("kafka brokers not configured, match events disabled")
		return &Producer{enabled: false, logger: logger}
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.KafkaBrokers, sc)
	if err != nil {
		logger.Warn().Err(err).Strs("brokers", cfg.KafkaBrokers).Msg("kafka producer not available, match events disabled")
		return &Producer{enabled: false, logger: logger}
	}

	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka producer connected")
	return newProducer(producer, cfg.KafkaTopic, logger)
}

func newProducer(producer sarama.SyncProducer, topic string, logger zerolog.Logger) *Producer {
	p := &Producer{
		producer: producer,
		topic:    topic,
		enabled:  true,
		logger:   logger,
		queue:    make(chan ScoreboardEvent, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Producer) Enabled() bool {
	return p.enabled
}

// Attach subscribes the producer to recorded matches on bus.
func (p *Producer) Attach(bus *events.Bus) func() {
	return events.Subscribe(bus, p.EmitMatchRecorded)
}

func (p *Producer) EmitMatchRecorded(ev events.MatchRecorded) {
	if !p.enabled {
		return
	}

	event := ScoreboardEvent{
		Type:      EventMatchRecorded,
		MatchID:   ev.MatchID,
		Timestamp: time.Now().UTC(),
		Data: MatchRecordedData{
			GameID:   ev.GameID,
			PlayedAt: ev.PlayedAt,
			DaySeq:   ev.DaySeq,
			Players:  ev.Players,
			Winners:  ev.Winners,
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.logger.Warn().Str("match_id", ev.MatchID).Msg("kafka queue full, dropping event")
	}
}

func (p *Producer) run() {
	defer p.wg.Done()
	for event := range p.queue {
		p.send(event)
	}
}

func (p *Producer) send(event ScoreboardEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal kafka event")
		return
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.MatchID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("match_id", event.MatchID).Msg("failed to send kafka event")
		return
	}
	p.logger.Debug().
		Str("type", string(event.Type)).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("kafka event sent")
}

// Close flushes queued events and closes the underlying producer.
func (p *Producer) Close() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	return p.producer.Close()
}
