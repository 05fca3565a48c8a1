package api

// SubmitReviewRequest is the body of POST /v1/queue/:id/submit.
type SubmitReviewRequest struct {
	Decision     string         `json:"decision" binding:"required,oneof=approve correct reject"`
	User         string         `json:"user"`
	Corrections  map[string]any `json:"corrections"`
	RejectReason string         `json:"reject_reason"`
}

// ClaimRequest is the body of POST /v1/queue/claim.
type ClaimRequest struct {
	User string `json:"user"`
}
