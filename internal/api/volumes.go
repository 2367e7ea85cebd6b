package api

import (
	"errors"
	"net/http"

	"journal-backend/internal/models"
	"journal-backend/internal/store"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetVolumes(c *gin.Context) {
	volumes, err := s.store.ListVolumes(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, volumes)
}

func (s *Server) GetVolume(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	volume, err := s.store.GetVolume(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, volume)
}

func (s *Server) CreateVolume(c *gin.Context) {
	var req models.CreateVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	volume := models.Volume{Number: req.Number, Year: req.Year, Title: req.Title}
	if err := s.store.CreateVolume(c.Request.Context(), &volume); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Volume number already exists"})
			return
		}
		s.respondError(c, err)
		return
	}
	volume.Issues = []models.Issue{}
	c.JSON(http.StatusCreated, volume)
}

func (s *Server) CreateIssue(c *gin.Context) {
	volumeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetVolume(ctx, volumeID); err != nil {
		s.respondError(c, err)
		return
	}
	issue := models.Issue{VolumeID: volumeID, Number: req.Number, Title: req.Title}
	if err := s.store.CreateIssue(ctx, &issue); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Issue number already exists in this volume"})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}
