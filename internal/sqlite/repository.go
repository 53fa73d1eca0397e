// Package sqlite archives harvested records in a local sqlite database for
// querying after the crawl.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"postharvest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	user         TEXT NOT NULL,
	date         TEXT NOT NULL,
	post_text    TEXT NOT NULL,
	quoted_text  TEXT NOT NULL DEFAULT '',
	reply_count  INTEGER NOT NULL DEFAULT 0,
	repost_count INTEGER NOT NULL DEFAULT 0,
	like_count   INTEGER NOT NULL DEFAULT 0,
	view_count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (post_text, date, user)
)`

// Repository stores harvested records in sqlite, keyed by the record identity
// tuple. The caller should call Close when the repository is no longer needed.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at path and ensures
// the schema exists.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveCollection upserts every record in the collection. Re-archiving the
// same identity refreshes the engagement counters.
func (r *Repository) SaveCollection(ctx context.Context, c *domain.Collection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (user, date, post_text, quoted_text, reply_count, repost_count, like_count, view_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (post_text, date, user) DO UPDATE SET
			quoted_text = excluded.quoted_text,
			reply_count = excluded.reply_count,
			repost_count = excluded.repost_count,
			like_count = excluded.like_count,
			view_count = excluded.view_count`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range c.Records() {
		_, err := stmt.ExecContext(ctx,
			rec.User,
			rec.Date,
			rec.PostText,
			rec.QuotedText,
			rec.ReplyCount,
			rec.RepostCount,
			rec.LikeCount,
			rec.ViewCount,
		)
		if err != nil {
			return fmt.Errorf("upsert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CountPosts returns the number of archived posts.
func (r *Repository) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}
