package dto

import "time"

// FileResponse - подписанная ссылка, url относительный к адресу relay
type FileResponse struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}
