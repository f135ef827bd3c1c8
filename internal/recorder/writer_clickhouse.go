package recorder

import (
	"Go2NetSDN/internal/config"
	"Go2NetSDN/internal/factory"
	"Go2NetSDN/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef, interval time.Duration) (model.Writer, error) {
		return NewClickHouseWriter(def.ClickHouse, interval)
	})
}

const createTableStatement = `
CREATE TABLE IF NOT EXISTS flow_samples (
    Timestamp      DateTime,
    DPID           UInt64,
    Priority       UInt16,
    MatchKey       String,
    Identity       String,
    DurationSec    Float64,
    PacketRate     Float64,
    ByteRate       Float64,
    MeanPacketSize Float64,
    PacketCount    UInt64,
    ByteCount      UInt64,
    Verdict        LowCardinality(String)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (DPID, Timestamp);
`

// ClickHouseWriter implements the model.Writer interface for ClickHouse.
type ClickHouseWriter struct {
	conn     driver.Conn
	interval time.Duration
}

// NewClickHouseWriter connects and ensures the samples table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig, interval time.Duration) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Info("Successfully connected to ClickHouse and ensured table exists.")

	return &ClickHouseWriter{conn: conn, interval: interval}, nil
}

// GetInterval returns the configured flush interval for this writer.
func (w *ClickHouseWriter) GetInterval() time.Duration {
	return w.interval
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write inserts one batch into the flow_samples table.
func (w *ClickHouseWriter) Write(records []model.SampleRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO flow_samples")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.Timestamp,
			uint64(r.DPID),
			r.Priority,
			r.MatchKey,
			r.Identity,
			r.Duration.Seconds(),
			r.Features.PacketRate,
			r.Features.ByteRate,
			r.Features.MeanPacketSize,
			r.Features.PacketCount,
			r.Features.ByteCount,
			r.Verdict.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to append sample to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Debugf("Wrote %d samples to ClickHouse", len(records))
	return nil
}

// Close closes the ClickHouse connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
