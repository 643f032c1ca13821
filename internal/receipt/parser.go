// Package receipt turns a photo of a receipt into a list of priced items by
// asking a Gemini model to itemize it.
package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensa/internal/core"
	"expensa/internal/log"

	"github.com/shopspring/decimal"
)

// Prompt is sent along with every image.
const Prompt = `Analyze the items in the receipt. For each item calculate its price including tax. ` +
	`Only items marked with "T" are taxable. Distribute the tax proportionally among the taxable items. ` +
	`The total of all items must match the bill total. Output the items list as plaintext parsable JSON ` +
	`string and not as a code block, with item_name and price as the keys for each item.`

const maxResponseBytes = 1 << 20

var ErrNotConfigured = errors.New("Gemini API key not configured")

// UpstreamError reports a non-2xx answer from the model API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Gemini API error: %d - %s", e.Status, e.Body)
}

type Item struct {
	Name  string          `json:"item_name"`
	Price decimal.Decimal `json:"price"`
}

type Result struct {
	Items []Item
	Total core.Money
	// Pretty is the model's JSON re-indented with two spaces.
	Pretty string
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Parser struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

func NewParser(cfg Config, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Parser{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent(log.ComponentReceipt),
	}
}

// Enabled reports whether an API key is configured.
func (p *Parser) Enabled() bool {
	return p.cfg.APIKey != ""
}

type (
	inlineData struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	}
	part struct {
		Text       string      `json:"text,omitempty"`
		InlineData *inlineData `json:"inline_data,omitempty"`
	}
	content struct {
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
)

// Parse sends the image to the model and decodes the itemized answer.
func (p *Parser) Parse(ctx context.Context, img Image) (Result, error) {
	if !p.Enabled() {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{
		{Text: Prompt},
		{InlineData: &inlineData{MimeType: img.MimeType, Data: img.Data}},
	}}}})
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	// The key goes in a header so it never appears in URLs quoted by errors.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.cfg.BaseURL, url.PathEscape(p.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read model response: %w", err)
	}
	p.logger.InfoContext(ctx, "Receipt model call",
		log.FieldUpstream, p.cfg.Model,
		log.FieldUpstreamCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return Result{}, fmt.Errorf("decode model response: %w", err)
	}
	var text string
	if len(gr.Candidates) > 0 && len(gr.Candidates[0].Content.Parts) > 0 {
		text = gr.Candidates[0].Content.Parts[0].Text
	}
	return ParseItems(text)
}

// StripCodeFences removes markdown ```json fences the model sometimes adds.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseItems decodes the model's text answer.
func ParseItems(text string) (Result, error) {
	cleaned := StripCodeFences(text)
	var items []Item
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return Result{}, fmt.Errorf("model returned unparsable items: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(cleaned), "", "  "); err != nil {
		return Result{}, err
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return Result{
		Items:  items,
		Total:  core.Money{Cents: total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()},
		Pretty: pretty.String(),
	}, nil
}
