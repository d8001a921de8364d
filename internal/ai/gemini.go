package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/acta/internal/errors"
	"github.com/hpungsan/acta/internal/meeting"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-lite"
)

// MissingKeyMessage is shown when generation is attempted without a key.
const MissingKeyMessage = "API Key not found. Please configure it in Settings."

// GeminiGenerator calls the Gemini generateContent API.
type GeminiGenerator struct {
	creds      CredentialSource
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// GeminiOption configures a GeminiGenerator.
type GeminiOption func(*GeminiGenerator)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) GeminiOption {
	return func(g *GeminiGenerator) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			g.baseURL = u
		}
	}
}

// WithModel selects the model.
func WithModel(model string) GeminiOption {
	return func(g *GeminiGenerator) {
		if model = normalizeModel(model); model != "" {
			g.model = model
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiGenerator) { g.httpClient = c }
}

// WithGeminiLogger sets the logger.
func WithGeminiLogger(l *slog.Logger) GeminiOption {
	return func(g *GeminiGenerator) { g.logger = l }
}

// NewGeminiGenerator builds a generator. The credential is not read here.
func NewGeminiGenerator(creds CredentialSource, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		creds:      creds,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the configured model name.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// GenerateMinutes sends the notes and images in one request and parses the
// reply. A reply that is not the expected JSON is kept as raw minutes.
func (g *GeminiGenerator) GenerateMinutes(ctx context.Context, notes string, images []meeting.Image) (*Result, error) {
	apiKey, err := g.creds.APIKey()
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("reading API key: %v", err))
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.NewConfiguration(MissingKeyMessage)
	}

	parts, err := buildParts(ctx, notes, images)
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}

	start := time.Now()
	var resp generateResponse
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	if err := g.doJSON(ctx, endpoint, apiKey, reqBody, &resp); err != nil {
		return nil, g.classify(ctx, err)
	}

	text := resp.text()
	if text == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, errors.NewGenerationFailed(fmt.Errorf("gemini blocked the request: %s", resp.PromptFeedback.BlockReason))
		}
		return nil, errors.NewGenerationFailed(fmt.Errorf("empty response from gemini"))
	}

	res, ok := ParseResponse(text)
	if !ok {
		g.logger.Warn("gemini reply was not minutes JSON, keeping raw text",
			"model", g.model, "chars", len(text))
	}
	g.logger.Debug("minutes generated",
		"model", g.model, "images", len(images), "tags", len(res.Tags), "elapsed", time.Since(start))
	return &res, nil
}

func (g *GeminiGenerator) classify(ctx context.Context, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return errors.NewCancelled("generation")
	}
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewGenerationFailed(fmt.Errorf("generation timed out"))
	}
	return errors.NewGenerationFailed(err)
}

// buildParts encodes the prompt and each image as inline base64 data.
// Encoding runs concurrently; part order follows image order.
func buildParts(ctx context.Context, notes string, images []meeting.Image) ([]part, error) {
	parts := make([]part, len(images)+1)
	parts[0] = part{Text: BuildPrompt(notes)}

	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parts[i+1] = part{InlineData: &inlineData{
				MimeType: img.MimeType,
				Data:     base64.StdEncoding.EncodeToString(img.Blob),
			}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (g *GeminiGenerator) doJSON(ctx context.Context, url, apiKey string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding gemini response: %w", err)
	}
	return nil
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// text joins the text parts of the first candidate.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
