// Package ocr extracts plain text from uploaded documents using AWS
// Textract: synchronous detection for images and single-page PDFs, the
// asynchronous job API (staged through S3) for multi-page PDFs.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/docproc/pkg/config"
)

const defaultPollInterval = time.Second

// TextractExtractor implements extraction.TextExtractor on AWS Textract.
// Transient provider failures yield empty text so the pipeline escalates to
// human review instead of failing the job.
type TextractExtractor struct {
	textract     *textract.Client
	s3           *s3.Client
	bucket       string
	pollInterval time.Duration
}

// NewTextractExtractor builds the provider from configuration. The S3
// bucket is required only for the async multi-page PDF path; without it,
// multi-page PDFs degrade to empty text.
func NewTextractExtractor(ctx context.Context, cfg *config.OCRConfig) (*TextractExtractor, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	poll := defaultPollInterval
	if cfg.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.PollInterval); err == nil && d > 0 {
			poll = d
		}
	}

	return &TextractExtractor{
		textract:     textract.NewFromConfig(awsCfg),
		s3:           s3.NewFromConfig(awsCfg),
		bucket:       cfg.S3Bucket,
		pollInterval: poll,
	}, nil
}

// ExtractText implements extraction.TextExtractor.
func (e *TextractExtractor) ExtractText(ctx context.Context, fileBytes []byte, contentType string) (string, error) {
	switch contentType {
	case "image/png", "image/jpeg", "image/jpg":
		return e.detectSync(ctx, fileBytes), nil

	case "application/pdf", "application/octet-stream":
		if countPDFPages(fileBytes) <= 1 {
			return e.detectSync(ctx, fileBytes), nil
		}
		return e.detectAsync(ctx, fileBytes), nil
	}

	slog.Warn("Unsupported content type for OCR, returning empty text", "content_type", contentType)
	return "", nil
}

// detectSync runs single-shot text detection on raw bytes.
func (e *TextractExtractor) detectSync(ctx context.Context, fileBytes []byte) string {
	resp, err := e.textract.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: fileBytes},
	})
	if err != nil {
		slog.Warn("Textract sync detection failed, returning empty text", "error", err)
		return ""
	}
	return blocksToText(resp.Blocks)
}

// detectAsync stages the PDF in S3, starts an async detection job, and
// polls until it reaches SUCCEEDED or FAILED, paginating the block output.
func (e *TextractExtractor) detectAsync(ctx context.Context, fileBytes []byte) string {
	if e.bucket == "" {
		slog.Warn("No S3 bucket configured for async OCR, returning empty text")
		return ""
	}

	key := fmt.Sprintf("textract-temp/%s.pdf", uuid.New().String())
	defer func() {
		// Best-effort cleanup of the staged object.
		if _, err := e.s3.DeleteObject(context.WithoutCancel(ctx), &s3.DeleteObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(key),
		}); err != nil {
			slog.Warn("Failed to delete staged OCR object", "key", key, "error", err)
		}
	}()

	if _, err := e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(fileBytes),
		ContentType: aws.String("application/pdf"),
	}); err != nil {
		slog.Warn("Failed to stage PDF for async OCR, returning empty text", "error", err)
		return ""
	}

	start, err := e.textract.StartDocumentTextDetection(ctx, &textract.StartDocumentTextDetectionInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(e.bucket), Name: aws.String(key)},
		},
	})
	if err != nil {
		slog.Warn("Failed to start async OCR job, returning empty text", "error", err)
		return ""
	}
	jobID := aws.ToString(start.JobId)

	var (
		blocks    []types.Block
		nextToken *string
	)
	for {
		res, err := e.textract.GetDocumentTextDetection(ctx, &textract.GetDocumentTextDetectionInput{
			JobId:     start.JobId,
			NextToken: nextToken,
		})
		if err != nil {
			slog.Warn("Async OCR polling failed, returning empty text", "job_id", jobID, "error", err)
			return ""
		}

		switch res.JobStatus {
		case types.JobStatusFailed:
			slog.Warn("Async OCR job failed, returning empty text (document will go to review)", "job_id", jobID)
			return ""

		case types.JobStatusSucceeded:
			blocks = append(blocks, res.Blocks...)
			nextToken = res.NextToken
			if nextToken == nil {
				return blocksToText(blocks)
			}

		default:
			select {
			case <-ctx.Done():
				slog.Warn("Async OCR cancelled, returning empty text", "job_id", jobID)
				return ""
			case <-time.After(e.pollInterval):
			}
		}
	}
}
