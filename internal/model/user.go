package model

import "time"

// User is a Telegram user known to the bot.
type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	MinTVLFilter float64   `json:"min_tvl_filter"`
	MinAPRFilter float64   `json:"min_apr_filter"`
	CreatedAt    time.Time `json:"created_at"`
}
