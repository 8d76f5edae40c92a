package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Membership using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at the given path and
// brings its schema up to date.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the applied migration count.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}

// SaveCampaign inserts or updates a campaign.
func (s *SQLiteStore) SaveCampaign(ctx context.Context, c Campaign) error {
	if c.ID == "" {
		return errors.New("campaign id is required")
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, game_system) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, game_system = excluded.game_system`,
		c.ID, c.Name, nullString(c.GameSystem),
	)
	return err
}

// GetCampaign returns a campaign by id.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	var c Campaign
	var system sql.NullString
	var created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, game_system, created_at FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &system, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Campaign{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Campaign{}, err
	}
	c.GameSystem = system.String
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

// AddMember adds a user to a campaign, creating the campaign row if needed.
// Adding an existing member updates the role.
func (s *SQLiteStore) AddMember(ctx context.Context, campaignID, userID, role string) error {
	if campaignID == "" || userID == "" {
		return errors.New("campaign id and user id are required")
	}
	if role == "" {
		role = "player"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO campaigns (id, name) VALUES (?, ?)`, campaignID, campaignID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO campaign_members (campaign_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT(campaign_id, user_id) DO UPDATE SET role = excluded.role`,
		campaignID, userID, role,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveMember removes a user from a campaign. Removing a non-member is a no-op.
func (s *SQLiteStore) RemoveMember(ctx context.Context, campaignID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM campaign_members WHERE campaign_id = ? AND user_id = ?`, campaignID, userID,
	)
	return err
}

// IsMember reports whether userID belongs to campaignID.
func (s *SQLiteStore) IsMember(ctx context.Context, campaignID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM campaign_members WHERE campaign_id = ? AND user_id = ?`, campaignID, userID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return true, nil
}

// Members lists a campaign's members in join order.
func (s *SQLiteStore) Members(ctx context.Context, campaignID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT campaign_id, user_id, role, joined_at FROM campaign_members
		 WHERE campaign_id = ? ORDER BY joined_at, rowid`, campaignID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		var joined int64
		if err := rows.Scan(&m.CampaignID, &m.UserID, &m.Role, &joined); err != nil {
			return nil, err
		}
		m.JoinedAt = time.Unix(joined, 0).UTC()
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
