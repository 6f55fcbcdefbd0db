package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vidquiz/logger"
	"vidquiz/models"
	"vidquiz/services"
)

type GameHandler struct {
	gameService *services.GameService
	transcripts *services.TranscriptService
	oracle      *services.OracleService
	hub         *services.Hub
}

func NewGameHandler(gameService *services.GameService, transcripts *services.TranscriptService, oracle *services.OracleService, hub *services.Hub) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		transcripts: transcripts,
		oracle:      oracle,
		hub:         hub,
	}
}

type CreateGameRequest struct {
	VideoURL      string `json:"video_url" binding:"required"`
	QuestionStyle int    `json:"question_style"`
	GradeLevel    string `json:"grade_level"`
}

type JoinGameRequest struct {
	Nickname string `json:"nickname" binding:"required"`
}

type GenerateQuestionRequest struct {
	VideoID       string  `json:"video_id" binding:"required"`
	CurrentTime   float64 `json:"current_time"`
	QuestionStyle int     `json:"question_style"`
	GradeLevel    string  `json:"grade_level"`
}

type CheckAnswerRequest struct {
	ContentSegment string                   `json:"content_segment" binding:"required"`
	Question       string                   `json:"question" binding:"required"`
	Answers        []models.CandidateAnswer `json:"answers" binding:"required"`
}

// CreateGame validates the video's transcript availability and allocates
// a new room. The failure message distinguishes a bad URL from a video
// without accessible captions.
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings := models.Settings{
		QuestionStyle: req.QuestionStyle,
		GradeLevel:    req.GradeLevel,
	}

	session, err := h.gameService.CreateGame(c.Request.Context(), req.VideoURL, settings)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidVideoURL):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video URL"})
		case errors.Is(err, services.ErrContentUnavailable):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Could not access video subtitles. The video might not have subtitles enabled, or they might be restricted. Try another video or ensure the video has captions available.",
			})
		default:
			logger.S().Errorf("create game: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create game"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"room_code": session.Code(),
		"video_id":  session.VideoID(),
	})
}

// JoinGame adds a player to a room and returns their assigned ID.
func (h *GameHandler) JoinGame(c *gin.Context) {
	roomCode := c.Param("code")
	if roomCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room code required"})
		return
	}

	var req JoinGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.gameService.JoinGame(roomCode, req.Nickname, h.hub)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid room code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player_id": player.ID,
		"nickname":  player.Nickname,
	})
}

// GenerateQuestion fetches the transcript segment ending at the current
// playback position and asks the oracle for a question over it. The
// session is untouched: the host previews the result and commits it
// separately with broadcast_question.
func (h *GameHandler) GenerateQuestion(c *gin.Context) {
	var req GenerateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	segment, err := h.transcripts.Segment(c.Request.Context(), req.VideoID, req.CurrentTime)
	if err != nil || segment == "" {
		if err != nil {
			logger.S().Warnf("transcript segment for %s: %v", req.VideoID, err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not get video transcript"})
		return
	}

	settings := models.Settings{
		QuestionStyle: req.QuestionStyle,
		GradeLevel:    req.GradeLevel,
	}

	question, err := h.oracle.GenerateQuestion(c.Request.Context(), segment, settings)
	if err != nil {
		logger.S().Errorf("generate question: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate question"})
		return
	}

	c.JSON(http.StatusOK, question)
}

// CheckAnswer grades a batch of submitted answers against the content
// segment the question was generated from.
func (h *GameHandler) CheckAnswer(c *gin.Context) {
	var req CheckAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdicts, err := h.oracle.CheckAnswers(c.Request.Context(), req.ContentSegment, req.Question, req.Answers)
	if err != nil {
		logger.S().Errorf("check answers: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not check answers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": verdicts})
}
