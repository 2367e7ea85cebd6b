package api

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var allowedUploadTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/x-latex": true,
	"application/zip":     true,
	"image/jpeg":          true,
	"image/png":           true,
	"text/plain":          true,
}

// UploadFile stores a manuscript file, galley proof or payment receipt and
// returns its URL.
func (s *Server) UploadFile(c *gin.Context) {
	if s.files == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "File storage is not configured"})
		return
	}

	maxSize := s.config.Storage.MaxSizeMB << 20
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File size exceeds %dMB limit", s.config.Storage.MaxSizeMB)})
		return
	}

	contentType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || !allowedUploadTypes[strings.ToLower(contentType)] {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File type not allowed: %s", header.Header.Get("Content-Type"))})
		return
	}

	obj, err := s.files.Upload(c.Request.Context(), c.PostForm("folder"), header.Filename, contentType, file, header.Size)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("file uploaded",
		zap.String("public_id", obj.PublicID),
		zap.Int64("size", header.Size),
	)

	c.JSON(http.StatusOK, gin.H{
		"secure_url": obj.SecureURL,
		"public_id":  obj.PublicID,
		"name":       header.Filename,
		"type":       contentType,
		"size":       header.Size,
	})
}
