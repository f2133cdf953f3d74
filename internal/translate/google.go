package translate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultGoogleBaseURL = "https://translate.googleapis.com/translate_a/single"

func init() {
	Register("google", func(cfg Config) (Translator, error) {
		return NewGoogleTranslator(cfg.BaseURL), nil
	})
}

// GoogleTranslator calls the unauthenticated gtx translate endpoint. The
// response is a deeply nested JSON array, picked apart with gjson.
type GoogleTranslator struct {
	baseURL string
	client  *http.Client
}

func NewGoogleTranslator(baseURL string) *GoogleTranslator {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &GoogleTranslator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = SourceAuto
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("dt", "t")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build translate request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read translate response: %w", err)
	}

	// shape: [[["segment translated","segment source",...], ...], ...]
	segments := gjson.GetBytes(body, "0.#.0")
	if !segments.Exists() {
		return "", fmt.Errorf("unexpected translate response shape")
	}

	var b strings.Builder
	for _, seg := range segments.Array() {
		b.WriteString(seg.String())
	}
	return b.String(), nil
}
