package models

import "time"

// Player is a joined participant. IDs are decimal strings assigned per
// session starting at "1" and are never reused, even after disconnect.
type Player struct {
	ID         string    `json:"id"`
	Nickname   string    `json:"nickname"`
	Score      int       `json:"score"`
	Connected  bool      `json:"connected"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
