package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/docproc/pkg/database"
	"github.com/codeready-toolchain/docproc/pkg/models"
	"github.com/codeready-toolchain/docproc/pkg/services"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/test/util"
)

func newTestServer(t *testing.T) (*Server, *store.Stores) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool := util.SetupTestPool(t)
	stores := store.New(pool)
	dbClient := database.NewClientFromPool(pool)

	server := NewServer(
		dbClient,
		services.NewIntakeService(stores, 5),
		services.NewJobService(stores),
		services.NewReviewService(stores),
		nil,
	)
	return server, stores
}

func doRequest(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Engine().ServeHTTP(rec, req)
	return rec
}

func uploadFile(t *testing.T, server *Server, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/process", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestProcessEndpoint(t *testing.T) {
	server, stores := newTestServer(t)

	t.Run("accepts an upload", func(t *testing.T) {
		rec := uploadFile(t, server, "invoice.pdf", "application/pdf", []byte("pdf bytes"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ProcessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.JobID)
		assert.NotEmpty(t, resp.DocumentID)
		assert.Equal(t, "queued", resp.Status)

		job, err := stores.Jobs.Get(context.Background(), resp.JobID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusQueued, job.Status)
	})

	t.Run("rejects empty files", func(t *testing.T) {
		rec := uploadFile(t, server, "empty.pdf", "application/pdf", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "empty_file")
	})

	t.Run("rejects missing file part", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/process", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetJobEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := uploadFile(t, server, "invoice.pdf", "application/pdf", []byte("pdf"))
	require.Equal(t, http.StatusOK, rec.Code)
	var created ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	t.Run("known job", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/jobs/"+created.JobID, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp JobStatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, created.JobID, resp.JobID)
		assert.Equal(t, created.DocumentID, resp.DocumentID)
		assert.Equal(t, "queued", resp.Status)
	})

	t.Run("unknown job is a clean 404", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/jobs/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "not_found")
	})
}

func TestQueueEndpoints(t *testing.T) {
	server, stores := newTestServer(t)
	ctx := context.Background()

	t.Run("claim on empty queue returns null item", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/queue/claim", ClaimRequest{User: "alice"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ClaimResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Nil(t, resp.ReviewItem)
	})

	// Seed a document, job, and review item.
	documentID := "doc-q"
	jobID := "job-q"
	_, err := stores.Documents.Create(ctx, documentID, models.StatusReviewPending)
	require.NoError(t, err)
	_, err = stores.Jobs.Create(ctx, jobID, documentID)
	require.NoError(t, err)
	item, err := stores.Reviews.Create(ctx, documentID, jobID, "low_confidence",
		map[string]any{"fields": map[string]any{}}, nil, 240)
	require.NoError(t, err)

	t.Run("list shows the pending item", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/queue?limit=10", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListQueueResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 1)
		assert.Equal(t, item.ID, resp.Items[0].ID)
		assert.Equal(t, models.PriorityLow, resp.Items[0].Priority)
	})

	t.Run("stats reflect the queue", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/queue/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats models.ReviewStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, 1, stats.QueueDepth)
		assert.Equal(t, 100.0, stats.SLACompliancePct)
	})

	t.Run("claim then submit with corrections", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/queue/claim", ClaimRequest{User: "alice"})
		require.Equal(t, http.StatusOK, rec.Code)
		var claim ClaimResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
		require.NotNil(t, claim.ReviewItem)
		assert.Equal(t, "claimed", claim.ReviewItem.Status)

		rec = doRequest(t, server, http.MethodPost, "/v1/queue/"+claim.ReviewItem.ID+"/submit",
			SubmitReviewRequest{
				Decision:    "correct",
				User:        "alice",
				Corrections: map[string]any{"total_amount": 42},
			})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var submit SubmitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submit))
		assert.True(t, submit.OK)
		assert.Equal(t, "completed", submit.Status)
		assert.EqualValues(t, 42, submit.LockedFields["total_amount"])

		doc, err := stores.Documents.Get(ctx, documentID)
		require.NoError(t, err)
		assert.EqualValues(t, 42, doc.LockedFields["total_amount"])
	})

	t.Run("submit on terminal item conflicts", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/queue/"+item.ID+"/submit",
			SubmitReviewRequest{Decision: "reject", User: "bob"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "illegal_state")
	})

	t.Run("submit on unknown item is 404", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/queue/ghost/submit",
			SubmitReviewRequest{Decision: "approve", User: "bob"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("submit with bad decision is 400", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodPost, "/v1/queue/"+item.ID+"/submit",
			map[string]any{"decision": "maybe", "user": "bob"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.True(t, resp.Database.Reachable)
	})

	t.Run("metrics", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("document preview is not stored", func(t *testing.T) {
		rec := doRequest(t, server, http.MethodGet, "/v1/documents/x/preview", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "preview_not_stored")
	})
}
