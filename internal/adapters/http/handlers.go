package http

import (
	"net/http"

	"github.com/dkeye/Conference/internal/app"
	"github.com/gin-gonic/gin"
)

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func listRooms(rooms *app.RoomRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, rooms.List())
	}
}
