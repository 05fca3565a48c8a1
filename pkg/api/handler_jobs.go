package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getJobHandler handles GET /v1/jobs/:id.
func (s *Server) getJobHandler(c *gin.Context) {
	status, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	job := status.Job
	c.JSON(http.StatusOK, JobStatusResponse{
		JobID:        job.ID,
		DocumentID:   job.DocumentID,
		Status:       string(job.Status),
		Error:        job.Error,
		Outputs:      job.Outputs,
		ReviewItemID: job.ReviewItemID,
		Extraction:   status.Extraction,
	})
}

// documentPreviewHandler handles GET /v1/documents/:id/preview.
// Original file bytes are not persisted beyond processing, so there is
// nothing to serve; the dashboard shows a clear message instead.
func (s *Server) documentPreviewHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorResponse{
		Status: "failed",
		Error:  "preview_not_stored",
	})
}
