// Feedrank - Personalized Post Recommendation Service
// Copyright 2026 Alex Smolin (asmolin)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/asmolin/feedrank

package featurestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/asmolin/feedrank/internal/metrics"
)

// Open opens a Postgres connection pool for the feature store. The pool
// is only used for the one-time startup loads; a small pool is enough.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	return db, nil
}

// Loader performs the chunked startup bulk loads. Queries fetch
// chunkSize rows per batch (keyset-free LIMIT/OFFSET over a stable
// ORDER BY) so memory stays bounded by one chunk plus the accumulated
// result, regardless of table size.
type Loader struct {
	db        *sql.DB
	chunkSize int
	logger    zerolog.Logger
}

// NewLoader creates a Loader.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLoader(db *sql.DB, chunkSize int, logger zerolog.Logger) *Loader {
	return &Loader{
		db:        db,
		chunkSize: chunkSize,
		logger:    logger.With().Str("component", "featurestore").Logger(),
	}
}

// Users bulk-loads the user feature table.
func (l *Loader) Users(ctx context.Context, table string) ([]User, error) {
	start := time.Now()
	query := fmt.Sprintf(`
		SELECT user_id, gender, age, country, city, exp_group
		FROM %s
		ORDER BY user_id
		LIMIT $1 OFFSET $2`, pq.QuoteIdentifier(table))

	var users []User
	err := l.chunked(ctx, func(offset int) (int, error) {
		rows, err := l.db.QueryContext(ctx, query, l.chunkSize, offset)
		if err != nil {
			return 0, fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var u User
			if err := rows.Scan(&u.UserID, &u.Gender, &u.Age, &u.Country, &u.City, &u.ExpGroup); err != nil {
				return 0, fmt.Errorf("scan %s: %w", table, err)
			}
			users = append(users, u)
			n++
		}
		return n, rows.Err()
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStartupLoad(table, len(users), time.Since(start))
	l.logger.Info().Str("table", table).Int("rows", len(users)).Msg("user features loaded")
	return users, nil
}

// Likes bulk-loads the like-event interaction history. Only distinct
// (post, user) pairs are fetched; order and multiplicity carry no
// meaning for membership filtering.
func (l *Loader) Likes(ctx context.Context, table string) ([]Like, error) {
	start := time.Now()
	query := fmt.Sprintf(`
		SELECT DISTINCT post_id, user_id
		FROM %s
		WHERE action = 'like'
		ORDER BY user_id, post_id
		LIMIT $1 OFFSET $2`, pq.QuoteIdentifier(table))

	var likes []Like
	err := l.chunked(ctx, func(offset int) (int, error) {
		rows, err := l.db.QueryContext(ctx, query, l.chunkSize, offset)
		if err != nil {
			return 0, fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var lk Like
			if err := rows.Scan(&lk.PostID, &lk.UserID); err != nil {
				return 0, fmt.Errorf("scan %s: %w", table, err)
			}
			likes = append(likes, lk)
			n++
		}
		return n, rows.Err()
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStartupLoad(table, len(likes), time.Since(start))
	l.logger.Info().Str("table", table).Int("rows", len(likes)).Msg("interaction history loaded")
	return likes, nil
}

// Posts bulk-loads one variant's post feature table. The table schema
// is not fixed: post_id, text and topic are required, and every other
// column is treated as a numeric model feature in column order.
func (l *Loader) Posts(ctx context.Context, table string) (PostTable, error) {
	start := time.Now()
	query := fmt.Sprintf(`
		SELECT *
		FROM %s
		ORDER BY post_id
		LIMIT $1 OFFSET $2`, pq.QuoteIdentifier(table))

	var pt PostTable
	err := l.chunked(ctx, func(offset int) (int, error) {
		rows, err := l.db.QueryContext(ctx, query, l.chunkSize, offset)
		if err != nil {
			return 0, fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			return 0, fmt.Errorf("columns %s: %w", table, err)
		}
		scanner, err := newPostRowScanner(columns)
		if err != nil {
			return 0, fmt.Errorf("table %s: %w", table, err)
		}
		if pt.FeatureNames == nil {
			pt.FeatureNames = scanner.featureNames
		} else if len(pt.FeatureNames) != len(scanner.featureNames) {
			return 0, fmt.Errorf("table %s: feature columns changed between chunks (%d -> %d)",
				table, len(pt.FeatureNames), len(scanner.featureNames))
		}

		n := 0
		for rows.Next() {
			dest := scanner.dest()
			if err := rows.Scan(dest...); err != nil {
				return 0, fmt.Errorf("scan %s: %w", table, err)
			}
			pt.Posts = append(pt.Posts, scanner.post(dest))
			n++
		}
		return n, rows.Err()
	})
	if err != nil {
		return PostTable{}, err
	}

	metrics.RecordStartupLoad(table, len(pt.Posts), time.Since(start))
	l.logger.Info().
		Str("table", table).
		Int("rows", len(pt.Posts)).
		Int("feature_columns", len(pt.FeatureNames)).
		Msg("post features loaded")
	return pt, nil
}

// chunked runs fetch with increasing offsets until a short chunk
// signals the end of the table.
func (l *Loader) chunked(ctx context.Context, fetch func(offset int) (int, error)) error {
	for offset := 0; ; offset += l.chunkSize {
		n, err := fetch(offset)
		if err != nil {
			return err
		}
		if n < l.chunkSize {
			return nil
		}
	}
}

// postRowScanner maps a dynamic post table row onto a Post. post_id is
// required; text and topic are optional display/categorical columns;
// all remaining columns are numeric features.
type postRowScanner struct {
	columns      []string
	idIdx        int
	textIdx      int
	topicIdx     int
	featureIdx   []int
	featureNames []string
}

func newPostRowScanner(columns []string) (*postRowScanner, error) {
	s := &postRowScanner{
		columns:  columns,
		idIdx:    -1,
		textIdx:  -1,
		topicIdx: -1,
	}
	for i, col := range columns {
		switch col {
		case "post_id":
			s.idIdx = i
		case "text":
			s.textIdx = i
		case "topic":
			s.topicIdx = i
		default:
			s.featureIdx = append(s.featureIdx, i)
			s.featureNames = append(s.featureNames, col)
		}
	}
	if s.idIdx < 0 {
		return nil, fmt.Errorf("post_id column missing (columns: %v)", columns)
	}
	return s, nil
}

// dest returns fresh scan destinations for one row.
func (s *postRowScanner) dest() []any {
	dest := make([]any, len(s.columns))
	for i := range dest {
		switch i {
		case s.idIdx:
			dest[i] = new(int)
		case s.textIdx, s.topicIdx:
			dest[i] = new(sql.NullString)
		default:
			dest[i] = new(sql.NullFloat64)
		}
	}
	return dest
}

// post assembles a Post from scanned destinations. NULL features are
// represented as 0; the upstream feature pipeline does not emit NULLs,
// so this only matters for hand-built fixtures.
func (s *postRowScanner) post(dest []any) Post {
	p := Post{
		PostID:   *dest[s.idIdx].(*int),
		Features: make([]float64, 0, len(s.featureIdx)),
	}
	if s.textIdx >= 0 {
		p.Text = dest[s.textIdx].(*sql.NullString).String
	}
	if s.topicIdx >= 0 {
		p.Topic = dest[s.topicIdx].(*sql.NullString).String
	}
	for _, i := range s.featureIdx {
		p.Features = append(p.Features, dest[i].(*sql.NullFloat64).Float64)
	}
	return p
}
