package store

import "context"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              BIGSERIAL PRIMARY KEY,
		username        TEXT NOT NULL UNIQUE,
		role            TEXT NOT NULL DEFAULT 'BUYER',
		gateway_key_id  TEXT,
		gateway_secret  TEXT,
		referrer_code   TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seller_listings (
		id           BIGSERIAL PRIMARY KEY,
		seller_id    BIGINT NOT NULL REFERENCES users(id),
		name         TEXT NOT NULL,
		price        BIGINT NOT NULL CHECK (price > 0),
		on_hand      INT NOT NULL CHECK (on_hand >= 0),
		status       TEXT NOT NULL DEFAULT 'DRAFT',
		purchased_by BIGINT REFERENCES users(id),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                 BIGSERIAL PRIMARY KEY,
		type               TEXT NOT NULL,
		buyer_id           BIGINT REFERENCES users(id),
		seller_id          BIGINT REFERENCES users(id),
		admin_id           BIGINT REFERENCES users(id),
		total_amount       BIGINT NOT NULL CHECK (total_amount >= 0),
		resale_price       BIGINT,
		status             TEXT NOT NULL DEFAULT 'PLACED',
		payment_status     TEXT NOT NULL DEFAULT 'PENDING',
		gateway_order_id   TEXT,
		gateway_payment_id TEXT,
		gateway_signature  TEXT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS resale_lots (
		id             BIGSERIAL PRIMARY KEY,
		listing_id     BIGINT NOT NULL REFERENCES seller_listings(id),
		seller_id      BIGINT NOT NULL REFERENCES users(id),
		admin_id       BIGINT NOT NULL REFERENCES users(id),
		order_id       BIGINT NOT NULL REFERENCES orders(id),
		name           TEXT NOT NULL,
		total_qty      INT NOT NULL CHECK (total_qty >= 1),
		sold_qty       INT NOT NULL DEFAULT 0 CHECK (sold_qty >= 0 AND sold_qty <= total_qty),
		purchase_price BIGINT NOT NULL,
		selling_price  BIGINT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL REFERENCES orders(id),
		lot_id       BIGINT REFERENCES resale_lots(id),
		listing_id   BIGINT REFERENCES seller_listings(id),
		product_name TEXT NOT NULL,
		quantity     INT NOT NULL CHECK (quantity >= 1),
		unit_price   BIGINT NOT NULL CHECK (unit_price >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS cart_lines (
		id         BIGSERIAL PRIMARY KEY,
		buyer_id   BIGINT NOT NULL REFERENCES users(id),
		lot_id     BIGINT REFERENCES resale_lots(id),
		listing_id BIGINT REFERENCES seller_listings(id),
		quantity   INT NOT NULL CHECK (quantity >= 1),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((lot_id IS NULL) <> (listing_id IS NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_lot ON cart_lines (buyer_id, lot_id) WHERE lot_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_listing ON cart_lines (buyer_id, listing_id) WHERE listing_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS broker_accounts (
		id             BIGSERIAL PRIMARY KEY,
		user_id        BIGINT NOT NULL UNIQUE REFERENCES users(id),
		code           TEXT NOT NULL UNIQUE,
		total_earnings NUMERIC(18,4) NOT NULL DEFAULT 0,
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS commission_records (
		id             BIGSERIAL PRIMARY KEY,
		broker_id      BIGINT NOT NULL REFERENCES broker_accounts(id),
		order_id       BIGINT NOT NULL REFERENCES orders(id),
		lot_id         BIGINT NOT NULL REFERENCES resale_lots(id),
		seller_id      BIGINT NOT NULL REFERENCES users(id),
		buyer_id       BIGINT NOT NULL REFERENCES users(id),
		purchase_price BIGINT NOT NULL,
		selling_price  BIGINT NOT NULL,
		profit         NUMERIC(18,4) NOT NULL,
		rate           NUMERIC(6,4) NOT NULL,
		amount         NUMERIC(18,4) NOT NULL,
		status         TEXT NOT NULL DEFAULT 'PENDING',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders (buyer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders (seller_id)`,
	`CREATE INDEX IF NOT EXISTS idx_lots_status ON resale_lots (status)`,
	`CREATE INDEX IF NOT EXISTS idx_commissions_broker ON commission_records (broker_id)`,
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
