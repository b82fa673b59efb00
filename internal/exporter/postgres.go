package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"

	"github.com/primal-host/skystream/internal/profile"
	"github.com/primal-host/skystream/internal/types"
)

// Schema contains the document-store tables: posts and users as JSONB
// documents keyed by CID/DID, plus a generic edge table for the
// relations between them.
const Schema = `
-- posts: One row per post record, keyed by record CID. The full
-- projection lives in the doc column; the scalar columns exist for
-- indexing and joins.
CREATE TABLE IF NOT EXISTS posts (
    cid        VARCHAR(255) PRIMARY KEY,
    author_did VARCHAR(255) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    doc        JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_did);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);

-- users: One row per DID. Rows start as placeholders created when a
-- post arrives; the doc column is filled in when the profile fetcher
-- resolves the full profile.
CREATE TABLE IF NOT EXISTS users (
    did VARCHAR(255) PRIMARY KEY,
    doc JSONB
);

-- edges: Relations between documents. src and dst are CIDs or DIDs
-- depending on rel:
--   author       user DID -> post CID
--   reply_parent post CID -> parent post CID
--   reply_root   post CID -> thread root post CID
--   quoted       post CID -> quoted post CID
CREATE TABLE IF NOT EXISTS edges (
    src VARCHAR(255) NOT NULL,
    rel VARCHAR(20) NOT NULL,
    dst VARCHAR(255) NOT NULL,
    PRIMARY KEY (src, rel, dst)
);

CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(rel, dst);
`

// maxPendingWrites bounds detached writes in flight. Acquiring a permit
// happens on the ingest goroutine, so a slow database backpressures the
// consumer instead of queueing unboundedly.
const maxPendingWrites = 16

// Postgres persists post records as JSONB documents with relational
// edges. Writes run detached from the ingest loop.
type Postgres struct {
	pool     *pgxpool.Pool
	sem      *semaphore.Weighted
	resolver *profile.Resolver // nil when profile fetching is disabled
	wg       sync.WaitGroup
	now      func() time.Time
}

// OpenPostgres connects, verifies the connection and bootstraps the
// schema. resolver may be nil to skip profile resolution.
func OpenPostgres(ctx context.Context, connString string, resolver *profile.Resolver) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("exporter: parse pg config: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("exporter: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exporter: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exporter: bootstrap schema: %w", err)
	}

	return &Postgres{
		pool:     pool,
		sem:      semaphore.NewWeighted(maxPendingWrites),
		resolver: resolver,
		now:      time.Now,
	}, nil
}

// Export enqueues a detached write for post records. It blocks only
// when all write permits are taken.
func (p *Postgres) Export(ctx context.Context, rec *types.Record) error {
	if rec.Kind != types.KindPost {
		return nil
	}
	post := rec.Post

	if post.CreatedAt.After(p.now().Add(time.Minute)) {
		log.Printf("Warning: post %s created_at is in the future: %s", post.ID, post.CreatedAt)
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("exporter: acquire write permit: %w", err)
	}
	p.wg.Add(1)

	go func() {
		defer p.sem.Release(1)
		defer p.wg.Done()

		// Detached from the ingest context: an in-flight write should
		// finish even while the consumer reconnects.
		writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := p.writePost(writeCtx, post); err != nil {
			log.Printf("Warning: persist post %s: %v", post.ID, err)
			return
		}
		if p.resolver != nil {
			if err := p.upsertUserProfile(writeCtx, post.Author); err != nil {
				log.Printf("Warning: resolve profile %s: %v", post.Author, err)
			}
		}
	}()

	return nil
}

// writePost upserts the post document, a placeholder user row and all
// edges in one transaction.
func (p *Postgres) writePost(ctx context.Context, post *types.Post) error {
	doc, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO posts (cid, author_did, created_at, doc)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cid) DO UPDATE SET doc = EXCLUDED.doc`,
		post.ID, post.Author, post.CreatedAt, doc,
	); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (did) VALUES ($1) ON CONFLICT (did) DO NOTHING`,
		post.Author,
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	edges := [][3]string{{post.Author, "author", post.ID}}
	if post.Reply != nil {
		edges = append(edges,
			[3]string{post.ID, "reply_parent", post.Reply.Parent},
			[3]string{post.ID, "reply_root", post.Reply.Root},
		)
	}
	if post.Embed != nil && post.Embed.Record != "" {
		edges = append(edges, [3]string{post.ID, "quoted", post.Embed.Record})
	}
	for _, e := range edges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO edges (src, rel, dst) VALUES ($1, $2, $3)
			 ON CONFLICT (src, rel, dst) DO NOTHING`,
			e[0], e[1], e[2],
		); err != nil {
			return fmt.Errorf("insert edge %s: %w", e[1], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertUserProfile resolves the author's full profile and writes it
// over the placeholder row.
func (p *Postgres) upsertUserProfile(ctx context.Context, did string) error {
	user, err := p.resolver.Get(ctx, did)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user doc: %w", err)
	}

	if _, err := p.pool.Exec(ctx,
		`INSERT INTO users (did, doc) VALUES ($1, $2)
		 ON CONFLICT (did) DO UPDATE SET doc = EXCLUDED.doc`,
		did, doc,
	); err != nil {
		return fmt.Errorf("upsert user doc: %w", err)
	}
	return nil
}

// Close waits for in-flight writes and shuts the pool down.
func (p *Postgres) Close() error {
	p.wg.Wait()
	p.pool.Close()
	return nil
}
