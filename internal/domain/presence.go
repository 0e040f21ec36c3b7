package domain

import "time"

type ViewerCount struct {
	ContentID string `json:"content_id"`
	Count     int    `json:"count"`
}

type ClientConfig struct {
	AdsEnabled      bool `json:"ads_enabled"`
	PresenceEnabled bool `json:"presence_enabled"`
}

type SessionInfo struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}
