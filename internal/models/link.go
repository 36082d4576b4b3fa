package models

import (
	"time"
)

// Link - одна короткая ссылка. Источник истины - PostgreSQL,
// кэш хранит только временную копию.
type Link struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ClickCount  int64      `json:"click_count"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsExpired проверяет, истёк ли срок жизни ссылки.
// Проверяется и при чтении из БД, и при попадании в кэш:
// кэш может хранить копию дольше, чем живёт сама ссылка.
func (l *Link) IsExpired() bool {
	if l.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*l.ExpiresAt)
}

type CreateLinkInput struct {
	OriginalURL string `json:"original_url" binding:"required,url"`
	ExpiresIn   *int   `json:"expires_in,omitempty"`
}
