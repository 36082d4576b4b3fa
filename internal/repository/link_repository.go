package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mkorchagin/shortener/internal/codegen"
	"github.com/mkorchagin/shortener/internal/models"
)

var (
	ErrLinkNotFound = errors.New("link not found")
)

type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)
	Delete(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, code string) error
	GetLinkIDByShortCode(ctx context.Context, code string) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]models.Link, error)
}

type linkRepository struct {
	db  *PostgresDB
	gen *codegen.Generator
}

func NewLinkRepository(db *PostgresDB, gen *codegen.Generator) LinkRepository {
	return &linkRepository{db: db, gen: gen}
}

// Create сохраняет ссылку и выводит короткий код из выделенного id.
// Делается в одной транзакции: INSERT получает id из sequence
// (единственная точка межзапросной координации - её атомарность
// гарантирует БД), затем код записывается обратно в строку.
// Код - чистая функция id, поэтому коллизии невозможны по построению.
func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(
		ctx,
		`INSERT INTO links (original_url, expires_at, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		link.OriginalURL,
		link.ExpiresAt,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	link.ShortCode = r.gen.Encode(uint64(link.ID))

	if _, err := tx.Exec(
		ctx,
		`UPDATE links SET short_code = $1 WHERE id = $2`,
		link.ShortCode,
		link.ID,
	); err != nil {
		return fmt.Errorf("failed to set short code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit link: %w", err)
	}

	return nil
}

// GetByShortCode возвращает ссылку по коду. Просроченные строки
// отфильтровываются прямо в SQL и неотличимы от несуществующих.
func (r *linkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	query := `
		SELECT id, short_code, original_url, click_count, expires_at, created_at
		FROM links
		WHERE short_code = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(
		&link.ID,
		&link.ShortCode,
		&link.OriginalURL,
		&link.ClickCount,
		&link.ExpiresAt,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM links WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// IncrementClicks увеличивает счётчик переходов на единицу.
// Именно инкремент, а не перезапись строки: конкурентные обновления
// не теряются. Вызывается только процессором кликов.
func (r *linkRepository) IncrementClicks(ctx context.Context, code string) error {
	query := `UPDATE links SET click_count = click_count + 1 WHERE short_code = $1`

	result, err := r.db.Pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment clicks: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func (r *linkRepository) GetLinkIDByShortCode(ctx context.Context, code string) (int64, error) {
	query := `SELECT id FROM links WHERE short_code = $1`

	var linkID int64
	err := r.db.Pool.QueryRow(ctx, query, code).Scan(&linkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to get link ID: %w", err)
	}

	return linkID, nil
}

// ListRecent возвращает последние созданные ссылки для дашборда
func (r *linkRepository) ListRecent(ctx context.Context, limit int) ([]models.Link, error) {
	query := `
		SELECT id, short_code, original_url, click_count, expires_at, created_at
		FROM links
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.ShortCode,
			&link.OriginalURL,
			&link.ClickCount,
			&link.ExpiresAt,
			&link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}
