// Package publish ships finished decision records to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"trident-trader/internal/domain"
	"trident-trader/internal/observability"
)

// ErrNoBrokers is returned when the publisher is built without brokers.
var ErrNoBrokers = errors.New("publish: brokers are required")

// Config configures a KafkaPublisher.
type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	Compression  string // none | gzip | snappy | lz4 | zstd
}

// DecisionMessage is the JSON payload of one decision record.
type DecisionMessage struct {
	RunID               string    `json:"run_id"`
	FoldIndex           int       `json:"fold_index"`
	Ts                  time.Time `json:"ts"`
	Armed               bool      `json:"armed"`
	LambdaGlobal        float64   `json:"lambda_global"`
	GoodStreams         int       `json:"good_streams"`
	Operator            string    `json:"operator"`
	MIScore             float64   `json:"mi_score"`
	MIStable            bool      `json:"mi_stable"`
	Temperature         float64   `json:"temperature"`
	PolicyEntropy       float64   `json:"policy_entropy"`
	RelationalCluster   string    `json:"relational_cluster"`
	RelationalCoupling  float64   `json:"relational_coupling"`
	RelationalStateKey  string    `json:"relational_state_key"`
	SRStateID           int       `json:"sr_state_id"`
	SRUncertainty       float64   `json:"sr_uncertainty"`
	SRTransitionEntropy float64   `json:"sr_transition_entropy"`
	SRTDErrorNorm       float64   `json:"sr_td_error_norm"`
	SRLearned           bool      `json:"sr_learned"`
	Regime              string    `json:"regime"`
	Zone                string    `json:"zone"`
	Load                float64   `json:"load"`
	StructuralMismatch  float64   `json:"structural_mismatch"`
	RiskMultiplier      float64   `json:"risk_multiplier"`
	Type2Trigger        bool      `json:"type2_trigger"`
	MIFalling           bool      `json:"mi_falling"`
	ControlMode         string    `json:"control_mode"`
	ExplorePressure     float64   `json:"explore_pressure"`
	PolicyHint          string    `json:"policy_hint"`
	Equity              float64   `json:"equity"`
	DailyPnL            float64   `json:"daily_pnl"`
	Fills               int       `json:"fills"`
	Rejections          int       `json:"rejections"`
}

// NewDecisionMessage converts d to its wire form.
func NewDecisionMessage(d domain.DecisionRecord) DecisionMessage {
	return DecisionMessage{
		RunID:               d.RunID,
		FoldIndex:           d.FoldIndex,
		Ts:                  d.Ts.UTC(),
		Armed:               d.Armed,
		LambdaGlobal:        d.LambdaGlobal,
		GoodStreams:         d.GoodStreams,
		Operator:            d.Operator,
		MIScore:             d.MIScore,
		MIStable:            d.MIStable,
		Temperature:         d.Temperature,
		PolicyEntropy:       d.PolicyEntropy,
		RelationalCluster:   d.RelationalCluster,
		RelationalCoupling:  d.RelationalCoupling,
		RelationalStateKey:  d.RelationalStateKey,
		SRStateID:           d.SRStateID,
		SRUncertainty:       d.SRUncertainty,
		SRTransitionEntropy: d.SRTransitionEntropy,
		SRTDErrorNorm:       d.SRTDErrorNorm,
		SRLearned:           d.SRLearned,
		Regime:              d.Regime,
		Zone:                d.Zone,
		Load:                d.Load,
		StructuralMismatch:  d.StructuralMismatch,
		RiskMultiplier:      d.RiskMultiplier,
		Type2Trigger:        d.Type2Trigger,
		MIFalling:           d.MIFalling,
		ControlMode:         d.ControlMode,
		ExplorePressure:     d.ExplorePressure,
		PolicyHint:          d.PolicyHint,
		Equity:              d.Equity,
		DailyPnL:            d.DailyPnL,
		Fills:               d.Fills,
		Rejections:          d.Rejections,
	}
}

// EncodeMessages renders decisions as Kafka messages keyed by run id, so
// one run stays on one partition in order.
func EncodeMessages(decisions []domain.DecisionRecord) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(decisions))
	for _, d := range decisions {
		v, err := json.Marshal(NewDecisionMessage(d))
		if err != nil {
			return nil, fmt.Errorf("marshal decision: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(d.RunID),
			Value: v,
			Time:  d.Ts.UTC(),
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "fold_index", Value: []byte(strconv.Itoa(d.FoldIndex))},
			},
		})
	}
	return msgs, nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Option configures a KafkaPublisher.
type Option func(*KafkaPublisher)

// WithLogger sets the publisher logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *KafkaPublisher) { p.logger = logger }
}

// WithMetrics records published message counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *KafkaPublisher) { p.metrics = m }
}

// KafkaPublisher writes decision records to a Kafka topic.
type KafkaPublisher struct {
	writer    messageWriter
	topic     string
	batchSize int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewKafkaPublisher creates a publisher for cfg.Topic.
func NewKafkaPublisher(cfg Config, opts ...Option) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  3,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: 10 * time.Second,
	}
	return newPublisher(w, cfg, opts...), nil
}

func newPublisher(w messageWriter, cfg Config, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		writer:    w,
		topic:     cfg.Topic,
		batchSize: max(cfg.BatchSize, 1),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes decisions in batches of the configured size. It stops at
// the first failed batch.
func (p *KafkaPublisher) Publish(ctx context.Context, decisions []domain.DecisionRecord) error {
	msgs, err := EncodeMessages(decisions)
	if err != nil {
		return err
	}
	for start := 0; start < len(msgs); start += p.batchSize {
		batch := msgs[start:min(start+p.batchSize, len(msgs))]
		err := p.writer.WriteMessages(ctx, batch...)
		p.metrics.RecordPublish(len(batch), err)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", p.topic, err)
		}
	}
	p.logger.Debug().Str("topic", p.topic).Int("messages", len(msgs)).Msg("decisions published")
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}
