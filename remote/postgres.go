package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feedscope/feedscope/model"
)

// Postgres implements Store against an upsert-capable Postgres database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) LatestTimestamp(ctx context.Context, id model.Identity) (*time.Time, error) {
	var ts time.Time
	err := p.pool.QueryRow(ctx, `
	SELECT timestamp FROM intercepted_records
	WHERE type = $1 AND originator_id = $2 AND item_id = $3 AND timestamp IS NOT NULL
	ORDER BY timestamp DESC LIMIT 1`,
		id.Type, id.OriginatorID, id.ItemID).Scan(&ts)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &ts, nil
}

func (p *Postgres) UpsertRecord(ctx context.Context, rec model.Record) (time.Time, error) {
	confirmed := time.Now().UTC()
	_, err := p.pool.Exec(ctx, `
	INSERT INTO intercepted_records (type, originator_id, item_id, user_id, data, timestamp)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (type, originator_id, item_id)
	DO UPDATE SET data = excluded.data, user_id = excluded.user_id, timestamp = excluded.timestamp`,
		rec.Type, rec.OriginatorID, rec.ItemID, rec.UserID, rec.Data, confirmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return confirmed, nil
}

func (p *Postgres) InsertRows(ctx context.Context, groups []model.RowGroup) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback(ctx)

	for _, g := range groups {
		if err := insertGroup(ctx, tx, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func insertGroup(ctx context.Context, tx pgx.Tx, g model.RowGroup) error {
	if g.Account != nil {
		_, err := tx.Exec(ctx, `
		INSERT INTO account (account_id, username, account_display_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE SET
		  username = excluded.username, account_display_name = excluded.account_display_name`,
			g.Account.AccountID, g.Account.Username, g.Account.AccountDisplayName, g.Account.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: account insert: %v", ErrUnavailable, err)
		}
	}

	if g.Profile != nil {
		_, err := tx.Exec(ctx, `
		INSERT INTO profile (account_id, bio, website, location, avatar_media_url, header_media_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
		  bio = excluded.bio, website = excluded.website, location = excluded.location,
		  avatar_media_url = excluded.avatar_media_url, header_media_url = excluded.header_media_url`,
			g.Profile.AccountID, g.Profile.Bio, g.Profile.Website, g.Profile.Location,
			g.Profile.AvatarMediaURL, g.Profile.HeaderMediaURL)
		if err != nil {
			return fmt.Errorf("%w: profile insert: %v", ErrUnavailable, err)
		}
	}

	_, err := tx.Exec(ctx, `
	INSERT INTO tweets (tweet_id, account_id, created_at, full_text, favorite_count, retweet_count,
	  reply_to_tweet_id, reply_to_user_id, reply_to_username)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (tweet_id) DO UPDATE SET
	  full_text = excluded.full_text, favorite_count = excluded.favorite_count,
	  retweet_count = excluded.retweet_count`,
		g.Tweet.TweetID, g.Tweet.AccountID, g.Tweet.CreatedAt, g.Tweet.FullText,
		g.Tweet.FavoriteCount, g.Tweet.RetweetCount,
		nullable(g.Tweet.ReplyToTweetID), nullable(g.Tweet.ReplyToUserID), nullable(g.Tweet.ReplyToUsername))
	if err != nil {
		return fmt.Errorf("%w: tweet insert: %v", ErrUnavailable, err)
	}

	for _, m := range g.Media {
		_, err := tx.Exec(ctx, `
		INSERT INTO tweet_media (media_id, tweet_id, media_url, media_type, width, height)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (media_id) DO NOTHING`,
			m.MediaID, m.TweetID, m.MediaURL, m.MediaType, m.Width, m.Height)
		if err != nil {
			return fmt.Errorf("%w: media insert: %v", ErrUnavailable, err)
		}
	}

	for _, u := range g.URLs {
		_, err := tx.Exec(ctx, `
		INSERT INTO tweet_urls (tweet_id, url, expanded_url, display_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
			u.TweetID, u.URL, u.ExpandedURL, u.DisplayURL)
		if err != nil {
			return fmt.Errorf("%w: url insert: %v", ErrUnavailable, err)
		}
	}

	for _, mn := range g.Mentions {
		_, err := tx.Exec(ctx, `
		INSERT INTO user_mentions (tweet_id, mentioned_user_id, mentioned_username)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
			mn.TweetID, mn.MentionedUserID, mn.MentionedUsername)
		if err != nil {
			return fmt.Errorf("%w: mention insert: %v", ErrUnavailable, err)
		}
	}

	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
