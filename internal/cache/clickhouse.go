package cache

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

type ClickHouseStore struct {
	conn driver.Conn
}

const createExecutionsTable = `
	CREATE TABLE IF NOT EXISTS ` + constants.ClickHouseExecutionsTable + ` (
		execution_id   String,
		timestamp      DateTime64(3),
		operation      LowCardinality(String),
		status         LowCardinality(String),
		pool           String,
		asset1_id      UInt64,
		asset2_id      UInt64,
		initiator      String,
		round          UInt64,
		group_id       String,
		tx_ids         Array(String),
		fees           UInt64,
		input_assets   Array(UInt64),
		input_amounts  Array(UInt64),
		output_assets  Array(UInt64),
		output_amounts Array(UInt64),
		excess_assets  Array(UInt64),
		excess_amounts Array(UInt64),
		excess_unknown Bool,
		error_kind     LowCardinality(String),
		error_message  String
	) ENGINE = MergeTree ORDER BY (pool, timestamp)
`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createExecutionsTable); err != nil {
		return nil, fmt.Errorf("failed to create executions table: %w", err)
	}

	cfg.Logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertExecution(ctx context.Context, ev *models.ExecutionEvent) error {
	query := `
		INSERT INTO ` + constants.ClickHouseExecutionsTable + ` (
			execution_id, timestamp, operation, status, pool, asset1_id, asset2_id,
			initiator, round, group_id, tx_ids, fees,
			input_assets, input_amounts, output_assets, output_amounts,
			excess_assets, excess_amounts, excess_unknown, error_kind, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inAssets, inAmounts := split(ev.Inputs)
	outAssets, outAmounts := split(ev.Outputs)
	exAssets, exAmounts := split(ev.Excess)
	txIDs := ev.TxIDs
	if txIDs == nil {
		txIDs = []string{}
	}

	err := c.conn.Exec(ctx, query,
		ev.ExecutionID,
		ev.Timestamp,
		ev.Operation,
		ev.Status,
		ev.Pool,
		ev.Asset1ID,
		ev.Asset2ID,
		ev.Initiator,
		ev.Round,
		ev.GroupID,
		txIDs,
		ev.Fees,
		inAssets, inAmounts,
		outAssets, outAmounts,
		exAssets, exAmounts,
		ev.ExcessUnknown,
		ev.ErrorKind,
		ev.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }
func (c *ClickHouseStore) Close() error                   { return c.conn.Close() }

func split(amounts []models.AssetAmount) ([]uint64, []uint64) {
	ids := make([]uint64, len(amounts))
	vals := make([]uint64, len(amounts))
	for i, a := range amounts {
		ids[i] = a.AssetID
		vals[i] = a.Amount
	}
	return ids, vals
}
