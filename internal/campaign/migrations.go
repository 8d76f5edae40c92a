package campaign

// migrations is the ordered list of schema steps; index+1 is the version.
// Timestamps are unix seconds.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS campaigns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		game_system TEXT,
		created_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER))
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_members (
		campaign_id TEXT NOT NULL REFERENCES campaigns(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'player',
		joined_at INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
		PRIMARY KEY (campaign_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_members_user ON campaign_members(user_id)`,
}
