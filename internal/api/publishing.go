package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (s *Server) MarkReadyForPublication(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	p := s.begin(c, id, workflow.ActionMarkReady)
	if p == nil {
		return
	}
	p.m.SetState(p.next)

	t := store.Transition{Events: []models.TimelineEvent{p.event("Marked ready for publication", nil)}}
	if !s.commit(c, p, t) {
		return
	}
	respondTransition(c, p)
}

func (s *Server) Publish(c *gin.Context) {
	s.publish(c, workflow.ActionPublish)
}

// DirectPublish skips the ready-for-publication step but links the article to
// a volume and issue exactly like Publish.
func (s *Server) DirectPublish(c *gin.Context) {
	s.publish(c, workflow.ActionDirectPublish)
}

func (s *Server) publish(c *gin.Context, action workflow.Action) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, action)
	if p == nil {
		return
	}

	ctx := c.Request.Context()
	volume, err := s.store.GetVolume(ctx, req.VolumeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			badRequest(c, "Volume not found")
			return
		}
		s.respondError(c, err)
		return
	}
	issue, err := s.store.GetIssue(ctx, req.IssueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			badRequest(c, "Issue not found")
			return
		}
		s.respondError(c, err)
		return
	}
	if issue.VolumeID != volume.ID {
		badRequest(c, "Issue does not belong to the volume")
		return
	}

	now := s.now()
	doi := strings.TrimSpace(req.DOI)
	if doi == "" && s.config.Journal.DOIPrefix != "" {
		doi = s.config.Journal.DOIPrefix + "/" + strings.ToLower(p.m.SubmissionNumber)
	}
	p.m.Publication = &models.Publication{
		VolumeID:    volume.ID,
		IssueID:     issue.ID,
		Pages:       req.Pages,
		DOI:         doi,
		PublishedAt: &now,
	}
	p.m.SetState(p.next)

	t := store.Transition{
		Article: &store.IssueArticle{IssueID: issue.ID, ManuscriptID: p.m.ID},
		Events: []models.TimelineEvent{p.event("Published in volume "+strconv.Itoa(volume.Number)+", issue "+strconv.Itoa(issue.Number), map[string]any{
			"volume_id": volume.ID.String(),
			"issue_id":  issue.ID.String(),
			"doi":       doi,
		})},
	}
	if !s.commit(c, p, t, notify.Published(p.m, volume, issue)...) {
		return
	}
	respondTransition(c, p)
}

// GetPublished lists published articles, newest first.
func (s *Server) GetPublished(c *gin.Context) {
	filter := models.ManuscriptFilter{Status: workflow.StatusPublished, Limit: 100}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 500 {
		filter.Limit = limit
	}
	articles, err := s.store.ListManuscripts(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	for i := range articles {
		articles[i] = publicView(articles[i])
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) GetPublishedArticle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := s.store.GetManuscript(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if m.Status != workflow.StatusPublished {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.JSON(http.StatusOK, publicView(*m))
}

func (s *Server) RecordView(c *gin.Context) {
	s.incrementMetric(c, store.MetricViews)
}

func (s *Server) RecordDownload(c *gin.Context) {
	s.incrementMetric(c, store.MetricDownloads)
}

func (s *Server) incrementMetric(c *gin.Context, metric string) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.store.IncrementMetric(c.Request.Context(), id, metric); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// publicView hides the editorial workflow details of a published article.
func publicView(m models.Manuscript) models.Manuscript {
	m.CoverLetter = ""
	m.CopyEditorAssignment = nil
	m.AuthorCopyEditReview = nil
	m.CopyEditReview = nil
	return m
}
