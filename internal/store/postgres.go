package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repovoice/pkg/models"
)

// PostgresStore is the durable Store implementation over pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: p}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Migrate applies the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS repositories (
  id             TEXT PRIMARY KEY,
  name           TEXT NOT NULL,
  description    TEXT NOT NULL DEFAULT '',
  source         TEXT NOT NULL,
  source_url     TEXT NOT NULL DEFAULT '',
  file_count     INT NOT NULL DEFAULT 0,
  language_stats JSONB NOT NULL DEFAULT '{}',
  status         TEXT NOT NULL,
  created_at     TIMESTAMP WITH TIME ZONE DEFAULT now(),
  updated_at     TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE TABLE IF NOT EXISTS questions (
  id            TEXT PRIMARY KEY,
  repository_id TEXT NOT NULL,
  question      TEXT NOT NULL,
  context       TEXT NOT NULL DEFAULT '',
  response      JSONB,
  created_at    TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE INDEX IF NOT EXISTS questions_repository_idx
  ON questions (repository_id);
`
	_, err := s.pool.Exec(ctx, q)
	return err
}

func (s *PostgresStore) PutRepository(ctx context.Context, r models.Repository) error {
	stats, err := json.Marshal(r.LanguageStats)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO repositories (id, name, description, source, source_url, file_count, language_stats, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			name           = EXCLUDED.name,
			description    = EXCLUDED.description,
			source         = EXCLUDED.source,
			source_url     = EXCLUDED.source_url,
			file_count     = EXCLUDED.file_count,
			language_stats = EXCLUDED.language_stats,
			status         = EXCLUDED.status,
			updated_at     = now();`
	_, err = s.pool.Exec(ctx, q,
		r.ID, r.Name, r.Description, string(r.Source), r.SourceURL,
		r.FileCount, stats, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetRepository(ctx context.Context, id string) (models.Repository, bool, error) {
	const q = `
		SELECT id, name, description, source, source_url, file_count, language_stats, status, created_at, updated_at
		FROM repositories WHERE id = $1`
	r, err := scanRepository(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Repository{}, false, nil
		}
		return models.Repository{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	const q = `
		SELECT id, name, description, source, source_url, file_count, language_stats, status, created_at, updated_at
		FROM repositories ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	repos := []models.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *PostgresStore) DeleteRepository(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status models.RepositoryStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE repositories SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	return err
}

func (s *PostgresStore) SetAnalysis(ctx context.Context, id string, fileCount int, stats map[string]int) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE repositories SET file_count = $2, language_stats = $3, status = $4, updated_at = now() WHERE id = $1`,
		id, fileCount, b, string(models.StatusReady))
	return err
}

func (s *PostgresStore) PutQuestion(ctx context.Context, q models.Question) error {
	var resp []byte
	if q.Response != nil {
		var err error
		resp, err = json.Marshal(q.Response)
		if err != nil {
			return err
		}
	}
	const sql = `
		INSERT INTO questions (id, repository_id, question, context, response, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET response = EXCLUDED.response;`
	_, err := s.pool.Exec(ctx, sql, q.ID, q.RepositoryID, q.Question, q.Context, resp, q.CreatedAt)
	return err
}

func (s *PostgresStore) GetQuestion(ctx context.Context, id string) (models.Question, bool, error) {
	const sql = `
		SELECT id, repository_id, question, context, response, created_at
		FROM questions WHERE id = $1`
	q, err := scanQuestion(s.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Question{}, false, nil
		}
		return models.Question{}, false, err
	}
	return q, true, nil
}

func (s *PostgresStore) ListQuestions(ctx context.Context, repositoryID string) ([]models.Question, error) {
	const sql = `
		SELECT id, repository_id, question, context, response, created_at
		FROM questions WHERE repository_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, sql, repositoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	qs := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

func scanRepository(row pgx.Row) (models.Repository, error) {
	var r models.Repository
	var source, status string
	var stats []byte
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &source, &r.SourceURL,
		&r.FileCount, &stats, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return models.Repository{}, err
	}
	r.Source = models.RepositorySource(source)
	r.Status = models.RepositoryStatus(status)
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &r.LanguageStats); err != nil {
			return models.Repository{}, fmt.Errorf("decode language stats: %w", err)
		}
	}
	return r, nil
}

func scanQuestion(row pgx.Row) (models.Question, error) {
	var q models.Question
	var resp []byte
	if err := row.Scan(&q.ID, &q.RepositoryID, &q.Question, &q.Context, &resp, &q.CreatedAt); err != nil {
		return models.Question{}, err
	}
	if len(resp) > 0 {
		q.Response = &models.QuestionResponse{}
		if err := json.Unmarshal(resp, q.Response); err != nil {
			return models.Question{}, fmt.Errorf("decode question response: %w", err)
		}
	}
	return q, nil
}
