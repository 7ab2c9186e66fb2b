package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalPull/internal/domain/models"
	"SignalPull/internal/domain/repository"
	pkgkafka "SignalPull/pkg/kafka"
)

// KafkaOutcomePublisher implements OutcomePublisher for Kafka. Evaluated
// outcomes fan out so sibling engine instances can replay them as
// experiences.
type KafkaOutcomePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaOutcomePublisher creates a Kafka outcome publisher.
func NewKafkaOutcomePublisher(producer *pkgkafka.Producer, topic string) repository.OutcomePublisher {
	return &KafkaOutcomePublisher{producer: producer, topic: topic}
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, exp *models.Experience) error {
	return p.producer.Publish(ctx, p.topic, []byte(exp.Symbol), exp)
}

func (p *KafkaOutcomePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// CHPredictionLog implements PredictionLog backed by ClickHouse.
type CHPredictionLog struct {
	db    *sql.DB
	table string
}

// NewCHPredictionLog creates a ClickHouse prediction log.
func NewCHPredictionLog(db *sql.DB, table string) *CHPredictionLog {
	if table == "" {
		table = "signalpull.predictions"
	}
	return &CHPredictionLog{db: db, table: table}
}

func (s *CHPredictionLog) Store(ctx context.Context, rec *models.PredictionRecord) error {
	q := fmt.Sprintf("INSERT INTO %s (id, symbol, created_at, class, confidence, price, source) VALUES (?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.Symbol,
		rec.CreatedAt,
		rec.Class,
		rec.Confidence,
		rec.Price,
		rec.Source,
	)
	return err
}

// Recent returns predictions created within the lookback window, oldest
// first. The observation processor pairs them with realized prices.
func (s *CHPredictionLog) Recent(ctx context.Context, symbol string, lookback time.Duration, limit int) ([]models.PredictionRecord, error) {
	q := fmt.Sprintf("SELECT id, symbol, created_at, class, confidence, price, source FROM %s WHERE symbol = ? AND created_at >= ? ORDER BY created_at ASC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, time.Now().Add(-lookback), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PredictionRecord
	for rows.Next() {
		var r models.PredictionRecord
		if err := rows.Scan(&r.ID, &r.Symbol, &r.CreatedAt, &r.Class, &r.Confidence, &r.Price, &r.Source); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *CHPredictionLog) Close() error {
	return nil // Managed by pkg
}
