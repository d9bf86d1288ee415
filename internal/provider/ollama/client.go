package ollama

import (
	"bufio"
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

	"alpaca/internal/provider"
)

type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

type Client struct {
	cfg Config
	// streamClient has no global timeout; a generation is bounded by ctx.
	streamClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 400 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		cfg:          cfg,
		streamClient: &http.Client{Transport: cfg.HTTPClient.Transport},
	}
}

var _ provider.Backend = (*Client)(nil)

type tagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Size    int64  `json:"size"`
		Details struct {
			Format            string `json:"format"`
			Family            string `json:"family"`
			ParameterSize     string `json:"parameter_size"`
			QuantizationLevel string `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	endpointURL, err := c.endpoint("/api/tags")
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		models, retry, err := c.listOnce(ctx, endpointURL)
		if err == nil {
			return models, nil
		}
		lastErr = err
		if !retry || attempt == c.cfg.MaxRetries {
			break
		}
		backoff := c.cfg.BackoffBase * (1 << attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c *Client) listOnce(ctx context.Context, endpointURL string) (models []provider.ModelInfo, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, false, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("ollama temporary status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, false, fmt.Errorf("ollama status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, false, fmt.Errorf("decode tags response: %w", err)
	}

	out := make([]provider.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		out = append(out, provider.ModelInfo{
			Name:              m.Name,
			SizeBytes:         m.Size,
			Format:            m.Details.Format,
			Family:            m.Details.Family,
			ParameterSize:     m.Details.ParameterSize,
			QuantizationLevel: m.Details.QuantizationLevel,
		})
	}
	return out, false, nil
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []provider.Message `json:"messages"`
	Stream   bool               `json:"stream"`
}

type chatStreamResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// ChatStream posts to /api/chat and relays the NDJSON stream line by
// line. No retry: a generation already under way cannot be replayed.
func (c *Client) ChatStream(ctx context.Context, model string, history []provider.Message) (<-chan provider.Chunk, <-chan error) {
	chunks := make(chan provider.Chunk, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		endpointURL, err := c.endpoint("/api/chat")
		if err != nil {
			errs <- err
			return
		}

		payload, err := json.Marshal(chatRequest{Model: model, Messages: history, Stream: true})
		if err != nil {
			errs <- fmt.Errorf("marshal chat payload: %w", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
		if err != nil {
			errs <- fmt.Errorf("build request: %w", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.streamClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			errs <- fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			return
		}

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 2<<20)

		for sc.Scan() {
			line := sc.Bytes()
			if len(line) == 0 {
				continue
			}

			var frame chatStreamResponse
			if err := json.Unmarshal(line, &frame); err != nil {
				errs <- fmt.Errorf("decode stream frame: %w", err)
				return
			}
			if frame.Error != "" {
				errs <- errors.New(frame.Error)
				return
			}

			select {
			case chunks <- provider.Chunk{Content: frame.Message.Content}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}

			if frame.Done {
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- fmt.Errorf("read stream: %w", err)
		}
	}()

	return chunks, errs
}

func (c *Client) endpoint(path string) (string, error) {
	base := strings.TrimSpace(c.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}
