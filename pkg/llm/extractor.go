// Package llm implements the structured invoice extractor on the Google
// Gemini API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/codeready-toolchain/docproc/pkg/extraction"
)

const systemInstruction = "Extract invoice fields from text. Return ONLY valid JSON matching the schema. Use \"UNKNOWN\" for text fields you cannot determine."

// invoiceFields is the JSON shape requested from the model.
type invoiceFields struct {
	InvoiceNumber string           `json:"invoice_number"`
	VendorName    string           `json:"vendor_name"`
	TotalAmount   float64          `json:"total_amount"`
	Currency      string           `json:"currency"`
	InvoiceDate   string           `json:"invoice_date"`
	TaxAmount     *float64         `json:"tax_amount"`
	LineItems     []map[string]any `json:"line_items"`
}

// GeminiExtractor implements extraction.StructuredExtractor. It never fails
// on provider errors: malformed or missing model output degrades to the
// all-null, zero-confidence shape, which validation then escalates.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates the extractor. apiKey must be non-empty.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract implements extraction.StructuredExtractor.
func (e *GeminiExtractor) Extract(ctx context.Context, text string) (*extraction.Result, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    invoiceSchema(),
		Temperature:       genai.Ptr[float32](0),
	}

	result, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(text), cfg)
	if err != nil {
		slog.Warn("Gemini extraction failed, returning null fields", "error", err)
		return extraction.NullResult(), nil
	}

	raw := responseText(result)
	if raw == "" {
		slog.Warn("Gemini returned no content, returning null fields")
		return extraction.NullResult(), nil
	}

	var parsed invoiceFields
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("Gemini returned malformed JSON, returning null fields", "error", err)
		return extraction.NullResult(), nil
	}

	fields := map[string]any{
		"invoice_number": parsed.InvoiceNumber,
		"vendor_name":    parsed.VendorName,
		"total_amount":   parsed.TotalAmount,
		"currency":       parsed.Currency,
		"invoice_date":   parsed.InvoiceDate,
	}
	if parsed.TaxAmount != nil {
		fields["tax_amount"] = *parsed.TaxAmount
	} else {
		fields["tax_amount"] = nil
	}
	if parsed.LineItems != nil {
		items := make([]any, len(parsed.LineItems))
		for i, item := range parsed.LineItems {
			items[i] = item
		}
		fields["line_items"] = items
	} else {
		fields["line_items"] = nil
	}

	// The model reports no confidence; scores are heuristic, anchored on
	// the OCR text the fields were extracted from.
	return &extraction.Result{
		Fields:     fields,
		Confidence: extraction.AllConfidence(fields, text),
	}, nil
}

// invoiceSchema is the structured-output schema sent with every request.
func invoiceSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"invoice_number": {Type: genai.TypeString},
			"vendor_name":    {Type: genai.TypeString},
			"total_amount":   {Type: genai.TypeNumber},
			"currency":       {Type: genai.TypeString},
			"invoice_date":   {Type: genai.TypeString},
			"tax_amount":     {Type: genai.TypeNumber, Nullable: genai.Ptr(true)},
			"line_items": {
				Type:     genai.TypeArray,
				Nullable: genai.Ptr(true),
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description": {Type: genai.TypeString},
						"quantity":    {Type: genai.TypeNumber},
						"unit_price":  {Type: genai.TypeNumber},
						"amount":      {Type: genai.TypeNumber},
					},
				},
			},
		},
		Required: []string{"invoice_number", "vendor_name", "total_amount", "currency", "invoice_date"},
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
