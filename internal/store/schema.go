package store

import (
	"context"
	"fmt"
)

// DDL comum aos dois dialetos. Dinheiro em BIGINT (unidades mínimas), preços em
// TEXT decimal e instantes em BIGINT (ms, exceto settlement_time em segundos).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  user_id        TEXT PRIMARY KEY,
  available      BIGINT NOT NULL DEFAULT 0 CHECK (available >= 0),
  claimable      BIGINT NOT NULL DEFAULT 0 CHECK (claimable >= 0),
  withdraw_nonce BIGINT NOT NULL DEFAULT 0,
  version        BIGINT NOT NULL DEFAULT 1,
  created_at     BIGINT NOT NULL,
  updated_at     BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
  id              TEXT PRIMARY KEY,
  user_id         TEXT NOT NULL REFERENCES accounts(user_id),
  type            TEXT NOT NULL,
  amount          BIGINT NOT NULL,
  balance_before  BIGINT NOT NULL,
  balance_after   BIGINT NOT NULL,
  ref_type        TEXT NOT NULL DEFAULT '',
  ref_id          TEXT NOT NULL DEFAULT '',
  idempotency_key TEXT UNIQUE,
  remark          TEXT NOT NULL DEFAULT '',
  created_at      BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_user_created ON ledger_entries(user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS bets (
  id               TEXT PRIMARY KEY,
  user_id          TEXT NOT NULL REFERENCES accounts(user_id),
  symbol           TEXT NOT NULL,
  amount           BIGINT NOT NULL CHECK (amount > 0),
  tick             INTEGER NOT NULL,
  tick_lower       TEXT NOT NULL,
  tick_upper       TEXT NOT NULL,
  basis_price      TEXT NOT NULL,
  odds_x100        BIGINT NOT NULL,
  settlement_time  BIGINT NOT NULL,
  status           TEXT NOT NULL,
  settlement_price TEXT,
  payout           BIGINT,
  settled_at       BIGINT,
  created_at       BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_user_status ON bets(user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_bets_due ON bets(symbol, status, settlement_time)`,
}

// Migrate aplica o schema; é idempotente
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
