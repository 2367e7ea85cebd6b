package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	notes, err := s.store.ListNotifications(c.Request.Context(), userID, c.Query("unread") == "true")
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.MarkNotificationRead(c.Request.Context(), id, userID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	n, err := s.store.MarkAllNotificationsRead(c.Request.Context(), userID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}
