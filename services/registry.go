package services

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"vidquiz/logger"
	"vidquiz/models"
)

const (
	roomCodeLength  = 6
	roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Sessions are destroyed only by abandonment: a periodic sweep
	// removes any session idle for longer than the retention window.
	sessionRetention = 2 * time.Hour
	sweepInterval    = 10 * time.Minute
)

// RoomRegistry owns every live game session, keyed by room code. All
// state is process memory; nothing survives a restart.
type RoomRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession
	clock    clockwork.Clock
}

func NewRoomRegistry(clock clockwork.Clock) *RoomRegistry {
	return &RoomRegistry{
		sessions: make(map[string]*GameSession),
		clock:    clock,
	}
}

// Create allocates a fresh unique room code and a lobby-phase session.
// Content validation happens before this is called; the registry itself
// only does bookkeeping.
func (r *RoomRegistry) Create(videoID string, settings models.Settings) *GameSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := generateRoomCode()
	for {
		if _, taken := r.sessions[code]; !taken {
			break
		}
		code = generateRoomCode()
	}

	session := newGameSession(code, videoID, settings, r.clock)
	r.sessions[code] = session

	logger.S().Infof("created room %s for video %s", code, videoID)
	return session
}

// Get looks up a session by room code. Codes are case-insensitive on the
// way in and stored uppercase.
func (r *RoomRegistry) Get(code string) (*GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[strings.ToUpper(code)]
	return session, ok
}

// Len reports the number of live sessions.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes every session whose last activity is older than the
// retention window and returns how many were removed. Safe to call
// concurrently with lookups.
func (r *RoomRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for code, session := range r.sessions {
		if now.Sub(session.LastActivity()) > sessionRetention {
			delete(r.sessions, code)
			removed++
			logger.S().Infof("swept idle room %s", code)
		}
	}
	return removed
}

// StartSweeper runs the periodic sweep until ctx is cancelled.
func (r *RoomRegistry) StartSweeper(ctx context.Context) {
	ticker := r.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.Sweep(r.clock.Now()); n > 0 {
				logger.S().Infof("sweeper removed %d idle rooms", n)
			}
		}
	}
}

func generateRoomCode() string {
	// Bytes at or above the largest multiple of the charset size are
	// rejected so the modulo draw stays uniform across the charset.
	const limit = 256 - 256%len(roomCodeCharset)

	code := make([]byte, 0, roomCodeLength)
	buf := make([]byte, 2*roomCodeLength)
	for len(code) < roomCodeLength {
		if _, err := rand.Read(buf); err != nil {
			panic("room code entropy source failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, roomCodeCharset[int(b)%len(roomCodeCharset)])
			if len(code) == roomCodeLength {
				break
			}
		}
	}
	return string(code)
}
