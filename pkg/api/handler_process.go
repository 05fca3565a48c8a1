package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/docproc/pkg/models"
)

// processHandler handles POST /v1/process: multipart file upload, returning
// the job and document ids for polling. The worker handoff is
// fire-and-forget; the response never waits on processing.
func (s *Server) processHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: "no_file_uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: "unreadable_file"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: "unreadable_file"})
		return
	}
	if len(fileBytes) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: "empty_file"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	result, err := s.intake.Accept(c.Request.Context(), fileHeader.Filename, contentType, fileBytes)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		JobID:      result.JobID,
		DocumentID: result.DocumentID,
		Status:     string(models.StatusQueued),
	})
}
