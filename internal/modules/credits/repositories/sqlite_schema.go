package repositories

// SQLiteMigrations returns the schema statements applied when a SQLite store opens.
// Timestamps are stored as INTEGER unix nanoseconds (UTC).
func SQLiteMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS credit_accounts (
			user_id         TEXT PRIMARY KEY,
			balance         INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
			total_earned    INTEGER NOT NULL DEFAULT 0,
			total_spent     INTEGER NOT NULL DEFAULT 0,
			monthly_used    INTEGER NOT NULL DEFAULT 0,
			last_reset_at   INTEGER NOT NULL,
			tier            TEXT NOT NULL DEFAULT 'free',
			beta_expires_at INTEGER,
			closed_at       INTEGER,
			version         INTEGER NOT NULL DEFAULT 0,
			created_at      INTEGER NOT NULL,
			updated_at      INTEGER NOT NULL
		)`,

		// seq is the rowid and orders entries that share a timestamp
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			id                TEXT NOT NULL UNIQUE,
			user_id           TEXT NOT NULL,
			type              TEXT NOT NULL,
			amount            INTEGER NOT NULL,
			reason            TEXT NOT NULL DEFAULT '',
			related_tool      TEXT NOT NULL DEFAULT '',
			resulting_balance INTEGER NOT NULL,
			created_at        INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user_created ON ledger_entries(user_id, created_at DESC, seq DESC)`,

		`CREATE TABLE IF NOT EXISTS referral_records (
			user_id        TEXT PRIMARY KEY,
			code           TEXT NOT NULL UNIQUE,
			referred_by    TEXT,
			referred_users TEXT NOT NULL DEFAULT '[]',
			credits_earned INTEGER NOT NULL DEFAULT 0,
			version        INTEGER NOT NULL DEFAULT 0,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS gamification_profiles (
			user_id            TEXT PRIMARY KEY,
			level              INTEGER NOT NULL DEFAULT 1,
			converted_level    INTEGER NOT NULL DEFAULT 1,
			xp                 INTEGER NOT NULL DEFAULT 0,
			time_bank_minutes  INTEGER NOT NULL DEFAULT 0,
			cumulative_minutes INTEGER NOT NULL DEFAULT 0,
			monthly_minutes    INTEGER NOT NULL DEFAULT 0,
			weekly_missions    TEXT NOT NULL DEFAULT '[]',
			version            INTEGER NOT NULL DEFAULT 0,
			created_at         INTEGER NOT NULL,
			updated_at         INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS tool_runs (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			tool_id    TEXT NOT NULL DEFAULT '',
			result     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id          TEXT PRIMARY KEY,
			actor_id    TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL,
			entity      TEXT NOT NULL,
			entity_id   TEXT NOT NULL DEFAULT '',
			old_value   TEXT,
			new_value   TEXT,
			description TEXT NOT NULL DEFAULT '',
			metadata    TEXT,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_logs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs(entity, entity_id)`,
	}
}
