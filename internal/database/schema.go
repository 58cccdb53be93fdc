package database

// schema defines the deal catalog and claim ledger tables.
//
// The claims_user_deal_unique constraint and the current_claims check are
// load-bearing: the admission controller relies on the storage layer to
// reject duplicate (user, deal) inserts and to keep the capacity counter
// non-negative. They are not optimizations.
const schema = `
CREATE TABLE IF NOT EXISTS deals (
	id                 TEXT PRIMARY KEY,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL,
	category           TEXT NOT NULL,
	partner_name       TEXT NOT NULL,
	partner_logo       TEXT NOT NULL DEFAULT '',
	discount_value     TEXT NOT NULL,
	eligibility_rules  TEXT[] NOT NULL,
	is_locked          BOOLEAN NOT NULL DEFAULT FALSE,
	expiry_date        TIMESTAMPTZ,
	website_url        TEXT NOT NULL DEFAULT '',
	claim_instructions TEXT NOT NULL DEFAULT '',
	max_claims         BIGINT,
	current_claims     BIGINT NOT NULL DEFAULT 0 CHECK (current_claims >= 0),
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deals_category ON deals (category);
CREATE INDEX IF NOT EXISTS idx_deals_expiry_date ON deals (expiry_date);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals (created_at DESC);

CREATE TABLE IF NOT EXISTS claims (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	deal_id     TEXT NOT NULL REFERENCES deals (id) ON DELETE CASCADE,
	status      TEXT NOT NULL DEFAULT 'pending',
	claimed_at  TIMESTAMPTZ NOT NULL,
	approved_at TIMESTAMPTZ,
	rejected_at TIMESTAMPTZ,
	notes       TEXT NOT NULL DEFAULT '',
	claim_code  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT claims_user_deal_unique UNIQUE (user_id, deal_id)
);

CREATE INDEX IF NOT EXISTS idx_claims_status ON claims (status);
CREATE INDEX IF NOT EXISTS idx_claims_deal_id ON claims (deal_id);
CREATE INDEX IF NOT EXISTS idx_claims_claimed_at ON claims (claimed_at DESC);
`
