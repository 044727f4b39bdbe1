package models

import "time"

// CreateSessionRequest defines the structure for opening a game session.
type CreateSessionRequest struct {
	Mode    string `json:"mode" binding:"omitempty,oneof=vs_computer two_player bot human"`
	Profile string `json:"profile" binding:"omitempty,max=40"`
}

// ProfileResponse describes one opponent tier.
type ProfileResponse struct {
	Name       string  `json:"name"`
	Difficulty string  `json:"difficulty"`
	ThinkMinMs int64   `json:"think_min_ms"`
	ThinkMaxMs int64   `json:"think_max_ms"`
	ErrorRate  float64 `json:"error_rate"`
}

// CreateSessionResponse carries the token to present on /ws.
type CreateSessionResponse struct {
	SessionID string            `json:"session_id"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Mode      string            `json:"mode"`
	Profile   string            `json:"profile"`
	Profiles  []ProfileResponse `json:"profiles"`
}
