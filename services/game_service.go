package services

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"vidquiz/logger"
	"vidquiz/models"
)

// GameService glues client actions to session transitions and fans the
// resulting events out through the hub. Sessions serialize their own
// mutations, so these handlers never hold any lock across an external
// call.
type GameService struct {
	registry    *RoomRegistry
	transcripts *TranscriptService
}

func NewGameService(registry *RoomRegistry, transcripts *TranscriptService) *GameService {
	return &GameService{
		registry:    registry,
		transcripts: transcripts,
	}
}

// JoinRoomEvent subscribes a connection to a room. player_id is set by
// reconnecting players, is_host by the host connection.
type JoinRoomEvent struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id,omitempty"`
	IsHost   bool   `json:"is_host,omitempty"`
}

// RoomEvent is the payload for events that only address a room.
type RoomEvent struct {
	RoomCode string `json:"room_code"`
}

type BroadcastQuestionEvent struct {
	RoomCode string          `json:"room_code"`
	Question models.Question `json:"question"`
}

type SubmitAnswerEvent struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	Answer   string `json:"answer"`
}

type AnswerResultEvent struct {
	RoomCode  string `json:"room_code"`
	PlayerID  string `json:"player_id"`
	IsCorrect bool   `json:"is_correct"`
}

// CreateGame validates that the video's transcript is reachable, then
// allocates a lobby-phase session. The probe failure is surfaced to the
// creating caller; nothing is retried here.
func (s *GameService) CreateGame(ctx context.Context, videoURL string, settings models.Settings) (*GameSession, error) {
	videoID, err := s.transcripts.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	if err := s.transcripts.Validate(ctx, videoID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	return s.registry.Create(videoID, settings), nil
}

// JoinGame adds a player to a session and announces them to the room.
func (s *GameService) JoinGame(roomCode, nickname string, hub *Hub) (models.Player, error) {
	session, ok := s.registry.Get(roomCode)
	if !ok {
		return models.Player{}, ErrInvalidRoomCode
	}

	player := session.AddPlayer(nickname)
	logger.S().Infof("player %s (%s) joined room %s", player.ID, player.Nickname, session.Code())

	if hub != nil {
		hub.BroadcastToRoom(session.Code(), "player_joined", gin.H{
			"player_id": player.ID,
			"nickname":  player.Nickname,
		})
	}
	return player, nil
}

// HandleJoinRoom subscribes a connection to room broadcasts. Hosts claim
// the single host slot; reconnecting players are flagged online again and
// get a solo resynchronization snapshot so a mid-question reload resumes
// the round.
func (s *GameService) HandleJoinRoom(hub *Hub, c *Client, req JoinRoomEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		hub.SendToClient(c, "join_error", gin.H{"message": "Unknown room code"})
		return
	}

	playerID := ""
	var player models.Player
	known := false
	if !req.IsHost && req.PlayerID != "" {
		if player, known = session.MarkConnected(req.PlayerID); known {
			playerID = req.PlayerID
		}
	}
	hub.bindRoom(c, session.Code(), playerID, req.IsHost)

	hub.SendToClient(c, "room_joined", gin.H{"room_code": session.Code()})

	if req.IsHost {
		session.SetHostConn(c.id)
		hub.SendToClient(c, "game_state_update", session.Snapshot())
		logger.S().Infof("host connection %s bound to room %s", c.id, session.Code())
		return
	}

	if known {
		hub.BroadcastToRoom(session.Code(), "player_reconnected", gin.H{
			"player_id": player.ID,
			"nickname":  player.Nickname,
		})
		hub.SendToClient(c, "game_state_update", session.Snapshot())
		logger.S().Infof("player %s reconnected to room %s", playerID, session.Code())
	}
}

// HandleStartGame moves a lobby to the playing phase. A repeated start is
// absorbed without a second broadcast.
func (s *GameService) HandleStartGame(hub *Hub, c *Client, req RoomEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}

	if session.StartGame() {
		hub.BroadcastToRoom(session.Code(), "game_started", gin.H{})
	}
}

// HandleBroadcastQuestion commits a (usually oracle-generated, host
// previewed) question to the room and arms the answer timer. Expiry is
// routed through the same feedback transition as the manual trigger.
func (s *GameService) HandleBroadcastQuestion(hub *Hub, c *Client, req BroadcastQuestionEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}

	duration := session.BeginQuestion(req.Question, func(answers []models.AnswerSubmission) {
		logger.S().Infof("answer timer expired for room %s", session.Code())
		s.broadcastFeedback(hub, session, answers)
	})

	hub.BroadcastToRoom(session.Code(), "new_question", gin.H{
		"question":               req.Question.Question,
		"correct_answer":         req.Question.CorrectAnswer,
		"incorrect_answers":      req.Question.IncorrectAnswers,
		"content_segment":        req.Question.ContentSegment,
		"timer_duration_seconds": int(duration.Seconds()),
	})
}

// HandleSubmitAnswer upserts a player's answer. The answer_submitted
// broadcast always precedes the timer_update for the same submission. A
// post-feedback submission earns a solo answer_rejected and leaves the
// room state untouched.
func (s *GameService) HandleSubmitAnswer(hub *Hub, c *Client, req SubmitAnswerEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}

	submission, remaining, err := session.SubmitAnswer(req.PlayerID, req.Answer)
	switch err {
	case nil:
	case ErrLateSubmission:
		hub.SendToClient(c, "answer_rejected", gin.H{"reason": "Feedback has already been shown"})
		return
	case ErrUnknownPlayer:
		c.sendError("unknown player")
		return
	default:
		c.sendError("could not submit answer")
		return
	}

	hub.BroadcastToRoom(session.Code(), "answer_submitted", gin.H{
		"player_id": submission.PlayerID,
		"nickname":  submission.Nickname,
		"answer":    submission.Answer,
	})
	hub.BroadcastToRoom(session.Code(), "timer_update", gin.H{
		"remaining_seconds": int(remaining.Seconds()),
	})
}

// HandleShowFeedback is the manual host trigger for the feedback phase.
func (s *GameService) HandleShowFeedback(hub *Hub, c *Client, req RoomEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}
	s.finishAnswering(hub, session)
}

// finishAnswering is the manual trigger's path into the feedback phase.
// The session transition is idempotent and timer expiry checks its round
// inside the same transition, so whichever of the two arrives second
// broadcasts nothing.
func (s *GameService) finishAnswering(hub *Hub, session *GameSession) {
	answers, changed := session.ShowFeedback()
	if !changed {
		return
	}
	s.broadcastFeedback(hub, session, answers)
}

func (s *GameService) broadcastFeedback(hub *Hub, session *GameSession, answers []models.AnswerSubmission) {
	if answers == nil {
		answers = []models.AnswerSubmission{}
	}
	hub.BroadcastToRoom(session.Code(), "show_feedback", gin.H{"answers": answers})
}

// HandleClearFeedback returns a feedback-phase session to playing.
func (s *GameService) HandleClearFeedback(hub *Hub, c *Client, req RoomEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}

	if session.ClearFeedback() {
		hub.BroadcastToRoom(session.Code(), "feedback_cleared", gin.H{})
	}
}

// HandleAnswerResult records a grading verdict; a correct answer adds the
// fixed 100-point increment to that player only.
func (s *GameService) HandleAnswerResult(hub *Hub, c *Client, req AnswerResultEvent) {
	session, ok := s.registry.Get(req.RoomCode)
	if !ok {
		c.sendError("unknown room code")
		return
	}

	player, err := session.ApplyAnswerResult(req.PlayerID, req.IsCorrect)
	if err != nil {
		c.sendError("unknown player")
		return
	}

	hub.BroadcastToRoom(session.Code(), "answer_result", gin.H{
		"player_id":  player.ID,
		"is_correct": req.IsCorrect,
		"score":      player.Score,
	})
}

// HandleDisconnect maps a dying connection back to its player and flags
// them offline. The player record and any submitted answer are kept so a
// reconnect resumes the round.
func (s *GameService) HandleDisconnect(hub *Hub, c *Client) {
	if c.roomCode == "" || c.playerID == "" {
		return
	}

	session, ok := s.registry.Get(c.roomCode)
	if !ok {
		return
	}

	player, known := session.MarkDisconnected(c.playerID)
	if !known {
		return
	}

	logger.S().Infof("player %s disconnected from room %s", player.ID, session.Code())
	hub.BroadcastToRoom(session.Code(), "player_disconnected", gin.H{
		"player_id": player.ID,
		"nickname":  player.Nickname,
	})
}
