package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vidquiz/handlers"
	"vidquiz/logger"
	"vidquiz/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func SetupRoutes(router *gin.Engine, gameHandler *handlers.GameHandler, hub *services.Hub) {
	// API routes
	api := router.Group("/api")
	{
		games := api.Group("/games")
		{
			games.POST("", gameHandler.CreateGame)
			games.POST("/:code/join", gameHandler.JoinGame)
		}

		api.POST("/questions/generate", gameHandler.GenerateQuestion)
		api.POST("/answers/check", gameHandler.CheckAnswer)
	}

	// WebSocket endpoint for real-time room communication. Room
	// membership is established afterwards by a join_game_room event,
	// not at upgrade time.
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.S().Warnf("websocket upgrade failed: %v", err)
			return
		}
		hub.RegisterClient(conn)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
