package services

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"vidquiz/models"
)

// GameSession is the state machine for one quiz room. Every mutation goes
// through a method that holds the session mutex, so the timer expiry path
// and client-triggered events can never observe an inconsistent
// combination of phase, feedback gate and submitted answers.
type GameSession struct {
	mu    sync.Mutex
	code  string
	video string
	clock clockwork.Clock

	phase            models.Phase
	settings         models.Settings
	players          map[string]*models.Player
	playerSeq        int
	currentQuestion  *models.Question
	submittedAnswers []models.AnswerSubmission
	feedbackShown    bool
	round            int

	timer         *answerTimer
	timerDeadline time.Time

	hostConnID   string
	lastActivity time.Time
}

// SessionSnapshot is the resynchronization payload pushed to a host or a
// reconnecting player. It carries whatever the current phase needs: the
// open question while answering, the feedback answers while in feedback.
type SessionSnapshot struct {
	RoomCode         string                    `json:"room_code"`
	Phase            models.Phase              `json:"phase"`
	Players          []models.Player           `json:"players"`
	CurrentQuestion  *models.Question          `json:"current_question,omitempty"`
	Answers          []models.AnswerSubmission `json:"answers,omitempty"`
	RemainingSeconds int                       `json:"remaining_seconds,omitempty"`
}

func newGameSession(code, videoID string, settings models.Settings, clock clockwork.Clock) *GameSession {
	return &GameSession{
		code:         code,
		video:        videoID,
		clock:        clock,
		phase:        models.PhaseLobby,
		settings:     settings.Normalized(),
		players:      make(map[string]*models.Player),
		lastActivity: clock.Now(),
	}
}

func (s *GameSession) Code() string { return s.code }

func (s *GameSession) VideoID() string { return s.video }

func (s *GameSession) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *GameSession) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActivity reports when the session was last touched by any player or
// host action; the registry sweep keys off it.
func (s *GameSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *GameSession) touch() {
	s.lastActivity = s.clock.Now()
}

// AddPlayer registers a new player under the next sequential ID and
// returns a copy of the record. IDs start at "1" and are never reused.
func (s *GameSession) AddPlayer(nickname string) models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.playerSeq++
	player := &models.Player{
		ID:         strconv.Itoa(s.playerSeq),
		Nickname:   nickname,
		Score:      0,
		Connected:  true,
		LastSeenAt: s.clock.Now(),
	}
	s.players[player.ID] = player
	return *player
}

// StartGame moves the session from lobby to playing. A repeated call is
// absorbed as a no-op and reports false so no duplicate broadcast fires.
func (s *GameSession) StartGame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != models.PhaseLobby {
		return false
	}
	s.phase = models.PhasePlaying
	return true
}

// BeginQuestion commits a question to the room: the session enters the
// answering phase with a cleared answer list and an open feedback gate,
// and the answer timer is armed. Any previously armed timer is cancelled
// first, and each arming bumps the round counter; an expiry callback
// already in flight when its round is replaced finds the counter moved
// on and never closes the new round. onExpire receives the collected
// answers when expiry wins the round.
func (s *GameSession) BeginQuestion(q models.Question, onExpire func([]models.AnswerSubmission)) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.timer != nil {
		s.timer.Cancel()
	}

	question := q
	s.round++
	s.phase = models.PhaseAnswering
	s.currentQuestion = &question
	s.submittedAnswers = nil
	s.feedbackShown = false
	s.timerDeadline = s.clock.Now().Add(AnswerDuration)

	round := s.round
	s.timer = startAnswerTimer(s.clock, AnswerDuration, func() {
		if answers, ok := s.expireRound(round); ok {
			onExpire(answers)
		}
	})

	return AnswerDuration
}

// SubmitAnswer upserts a player's answer for the current question and
// returns the stored submission plus the remaining answer time. The
// feedback gate is checked here, immediately before the mutation: once
// feedback has been shown the submission is rejected with
// ErrLateSubmission rather than silently dropped. A second submission
// from the same player before feedback replaces the prior text in place.
func (s *GameSession) SubmitAnswer(playerID, answer string) (models.AnswerSubmission, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	player, ok := s.players[playerID]
	if !ok {
		return models.AnswerSubmission{}, 0, ErrUnknownPlayer
	}
	if s.feedbackShown || s.currentQuestion == nil {
		return models.AnswerSubmission{}, 0, ErrLateSubmission
	}

	submission := models.AnswerSubmission{
		PlayerID: playerID,
		Nickname: player.Nickname,
		Answer:   answer,
	}

	replaced := false
	for i := range s.submittedAnswers {
		if s.submittedAnswers[i].PlayerID == playerID {
			s.submittedAnswers[i] = submission
			replaced = true
			break
		}
	}
	if !replaced {
		s.submittedAnswers = append(s.submittedAnswers, submission)
	}

	remaining := s.timerDeadline.Sub(s.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return submission, remaining, nil
}

// ShowFeedback closes the feedback gate and moves the session to the
// feedback phase, returning the collected answers. It is idempotent:
// when the session has already left the answering phase the call reports
// false and no answers are returned, so a racing timer and manual
// trigger produce exactly one broadcast.
func (s *GameSession) ShowFeedback() ([]models.AnswerSubmission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.closeRound()
}

// expireRound is the timer's path into the feedback transition. The
// round check runs under the same mutex as the transition, so a stale
// expiry callback racing a rebroadcast can never close the round that
// replaced its own.
func (s *GameSession) expireRound(round int) ([]models.AnswerSubmission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if round != s.round {
		return nil, false
	}
	return s.closeRound()
}

// closeRound performs the answering-to-feedback transition. Caller holds
// the mutex.
func (s *GameSession) closeRound() ([]models.AnswerSubmission, bool) {
	if s.phase != models.PhaseAnswering || s.feedbackShown {
		return nil, false
	}

	if s.timer != nil {
		s.timer.Cancel()
		s.timer = nil
	}
	s.timerDeadline = time.Time{}
	s.phase = models.PhaseFeedback
	s.feedbackShown = true

	answers := make([]models.AnswerSubmission, len(s.submittedAnswers))
	copy(answers, s.submittedAnswers)
	return answers, true
}

// ClearFeedback returns the session to the playing phase with no current
// question. Reports false outside the feedback phase.
func (s *GameSession) ClearFeedback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.phase != models.PhaseFeedback {
		return false
	}
	s.phase = models.PhasePlaying
	s.currentQuestion = nil
	s.submittedAnswers = nil
	s.feedbackShown = false
	return true
}

// ApplyAnswerResult records a grading verdict for a player. A correct
// answer is worth a fixed 100 points; other players are untouched.
func (s *GameSession) ApplyAnswerResult(playerID string, correct bool) (models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	player, ok := s.players[playerID]
	if !ok {
		return models.Player{}, ErrUnknownPlayer
	}
	if correct {
		player.Score += 100
	}
	return *player, nil
}

// MarkConnected flags a known player as connected again and stamps their
// last-seen time. Reports false for an unknown player ID.
func (s *GameSession) MarkConnected(playerID string) (models.Player, bool) {
	return s.setConnected(playerID, true)
}

// MarkDisconnected flags a player offline. The player and any submitted
// answer stay in the session so a reconnect resumes the round.
func (s *GameSession) MarkDisconnected(playerID string) (models.Player, bool) {
	return s.setConnected(playerID, false)
}

func (s *GameSession) setConnected(playerID string, connected bool) (models.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	player, ok := s.players[playerID]
	if !ok {
		return models.Player{}, false
	}
	player.Connected = connected
	player.LastSeenAt = s.clock.Now()
	return *player, true
}

// SetHostConn records the connection currently acting as host. A single
// slot; the last writer wins.
func (s *GameSession) SetHostConn(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.hostConnID = connID
}

func (s *GameSession) HostConn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostConnID
}

// Snapshot assembles the full resynchronization state: phase, roster with
// scores, the current question while answering or in feedback, the
// feedback answers once shown, and the remaining answer time.
func (s *GameSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		RoomCode: s.code,
		Phase:    s.phase,
		Players:  make([]models.Player, 0, len(s.players)),
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool {
		a, _ := strconv.Atoi(snap.Players[i].ID)
		b, _ := strconv.Atoi(snap.Players[j].ID)
		return a < b
	})

	if s.currentQuestion != nil {
		question := *s.currentQuestion
		snap.CurrentQuestion = &question
	}
	if s.feedbackShown {
		snap.Answers = make([]models.AnswerSubmission, len(s.submittedAnswers))
		copy(snap.Answers, s.submittedAnswers)
	}
	if s.phase == models.PhaseAnswering && !s.timerDeadline.IsZero() {
		remaining := s.timerDeadline.Sub(s.clock.Now())
		if remaining > 0 {
			snap.RemainingSeconds = int(remaining.Seconds())
		}
	}
	return snap
}
