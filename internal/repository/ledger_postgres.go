package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	apperrors "github.com/tm-acme-shop/acme-shop-storefront-bot/internal/errors"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/models"
)

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS ledger_rows (
		id           BIGSERIAL PRIMARY KEY,
		buyer_id     TEXT NOT NULL,
		buyer_handle TEXT NOT NULL,
		quantity     INTEGER NOT NULL,
		total_price  NUMERIC(12, 2) NOT NULL,
		pay_currency TEXT NOT NULL,
		invoice_url  TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		order_id     TEXT NOT NULL,
		payment_id   TEXT,
		channel      TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresLedger appends completed orders to the ledger_rows table.
type PostgresLedger struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

// NewPostgresLedger creates a new PostgreSQL ledger.
func NewPostgresLedger(db *sql.DB, logger *logging.LoggerV2) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the ledger table when it does not exist yet.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, ledgerSchema); err != nil {
		l.logger.Error("Failed to create ledger schema", logging.Fields{"error": err.Error()})
		return err
	}
	return nil
}

// Append inserts one row. Any failure is returned as *errors.LedgerError.
func (l *PostgresLedger) Append(ctx context.Context, row *models.LedgerRow) error {
	l.logger.Debug("Appending ledger row", logging.Fields{
		"order_id": row.OrderID,
		"buyer_id": row.BuyerID,
		"outcome":  row.Outcome,
	})

	query := `
		INSERT INTO ledger_rows (buyer_id, buyer_handle, quantity, total_price, pay_currency,
		                         invoice_url, outcome, order_id, payment_id, channel, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	recordedAt := row.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := l.db.ExecContext(ctx, query,
		row.BuyerID,
		row.BuyerHandle,
		row.Quantity,
		row.TotalPrice,
		string(row.PayCurrency),
		row.InvoiceURL,
		row.Outcome,
		row.OrderID,
		nullString(row.PaymentID),
		string(row.Channel),
		recordedAt,
	)
	if err != nil {
		fields := logging.Fields{
			"order_id": row.OrderID,
			"error":    err.Error(),
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			fields["pg_code"] = string(pqErr.Code)
		}
		l.logger.Error("Failed to append ledger row", fields)
		return &apperrors.LedgerError{Err: err}
	}

	l.logger.Info("Ledger row appended", logging.Fields{
		"order_id": row.OrderID,
		"buyer_id": row.BuyerID,
		"quantity": row.Quantity,
		"total":    row.TotalPrice.StringFixed(2),
		"channel":  string(row.Channel),
	})
	return nil
}

func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
