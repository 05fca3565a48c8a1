package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/docproc/pkg/services"
)

// defaultReviewer is used when a claim or submit request names no user.
const defaultReviewer = "reviewer_1"

// listQueueHandler handles GET /v1/queue. With ?user=, the user's claimed
// items are included alongside pending ones.
func (s *Server) listQueueHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	user := c.Query("user")

	items, err := s.reviews.List(c.Request.Context(), limit, offset, user)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	response := ListQueueResponse{Items: make([]*ReviewItemResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, reviewItemResponse(item))
	}
	c.JSON(http.StatusOK, response)
}

// queueStatsHandler handles GET /v1/queue/stats: dashboard numbers for the
// trailing 24 hours.
func (s *Server) queueStatsHandler(c *gin.Context) {
	stats, err := s.reviews.Stats(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// claimHandler handles POST /v1/queue/claim. An empty queue yields a null
// review_item, not an error.
func (s *Server) claimHandler(c *gin.Context) {
	var req ClaimRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	if req.User == "" {
		req.User = defaultReviewer
	}

	item, err := s.reviews.ClaimNext(c.Request.Context(), req.User)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, ClaimResponse{ReviewItem: nil})
		return
	}
	c.JSON(http.StatusOK, ClaimResponse{ReviewItem: reviewItemResponse(item)})
}

// submitHandler handles POST /v1/queue/:id/submit.
func (s *Server) submitHandler(c *gin.Context) {
	var req SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "failed", Error: "invalid_request"})
		return
	}
	if req.User == "" {
		req.User = defaultReviewer
	}

	item, err := s.reviews.Submit(c.Request.Context(), services.Submission{
		ReviewID:     c.Param("id"),
		Decision:     req.Decision,
		User:         req.User,
		Corrections:  req.Corrections,
		RejectReason: req.RejectReason,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitResponse{
		OK:           true,
		ReviewItemID: item.ID,
		DocumentID:   item.DocumentID,
		JobID:        item.JobID,
		Status:       string(item.Status),
		LockedFields: item.LockedFields,
	})
}
