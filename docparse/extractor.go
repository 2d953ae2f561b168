package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

// ParsedItem is one line extracted from a supplier invoice document, with
// attributes as the extractor saw them.
type ParsedItem struct {
	Brand     string          `json:"brand"`
	Model     string          `json:"model"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type ParsedInvoice struct {
	Supplier         string          `json:"supplier"`
	InvoiceReference string          `json:"invoice_reference"`
	InvoiceDate      string          `json:"invoice_date"`
	ShippingCost     decimal.Decimal `json:"shipping_cost"`
	Discount         decimal.Decimal `json:"discount"`
	CreditCardFee    decimal.Decimal `json:"credit_card_fee"`
	Tax              decimal.Decimal `json:"tax"`
	OtherFee         decimal.Decimal `json:"other_fee"`
	Items            []*ParsedItem   `json:"items"`
}

// Extractor turns an uploaded invoice document into structured line items.
type Extractor interface {
	Extract(ctx context.Context, filename string, document []byte) (*ParsedInvoice, error)
}

// HTTPExtractor posts the document to an extraction service and decodes its
// JSON response.
type HTTPExtractor struct {
	baseURL string
	http    *http.Client
}

func NewHTTPExtractor() (*HTTPExtractor, error) {
	baseURL := strings.TrimSpace(os.Getenv("EXTRACTOR_URL"))
	if baseURL == "" {
		return nil, utils.NewValidationError("EXTRACTOR_URL is not configured")
	}
	return &HTTPExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (e *HTTPExtractor) Extract(ctx context.Context, filename string, document []byte) (*ParsedInvoice, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(document); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, utils.NewUpstreamError("document extraction request", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, utils.NewUpstreamError(
			fmt.Sprintf("extraction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var parsed ParsedInvoice
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, utils.NewUpstreamError("decode extraction response", err)
	}
	if len(parsed.Items) == 0 {
		return nil, utils.NewUpstreamError("extraction returned no line items", nil)
	}
	return &parsed, nil
}

// ExtractWithRetry wraps Extract with the bounded backoff policy used for
// all upstream document calls.
func ExtractWithRetry(ctx context.Context, extractor Extractor, filename string, document []byte) (*ParsedInvoice, error) {
	var result *ParsedInvoice
	err := utils.RetryWithBackoff(ctx, 3, time.Second, func() error {
		parsed, err := extractor.Extract(ctx, filename, document)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
