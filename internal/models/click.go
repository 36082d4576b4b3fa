package models

import (
	"time"
)

// Click - одна запись о переходе по ссылке
type Click struct {
	ID        int64     `json:"id"`
	LinkID    int64     `json:"link_id"`
	ShortCode string    `json:"short_code"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer"`
	Country   string    `json:"country"`
	ClickedAt time.Time `json:"clicked_at"`
}

// ClickEvent - событие перехода, передаваемое в очередь процессора.
// Живёт только в памяти: в БД сохраняется уже как Click.
type ClickEvent struct {
	ShortCode string
	IPAddress string
	UserAgent string
	Referer   string
	Country   string
	Timestamp time.Time
}

type ClickStats struct {
	ShortCode    string `json:"short_code"`
	TotalClicks  int64  `json:"total_clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// CountryClickStats - агрегация переходов по странам для дашборда
type CountryClickStats struct {
	Country string `json:"name"`
	Clicks  int64  `json:"clicks"`
}
