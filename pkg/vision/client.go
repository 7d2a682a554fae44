// Package vision provides the client for the external vision-capable
// language model that describes chest X-ray images. The model output is
// returned verbatim; interpreting it is the report normalizer's job.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/radiology-ai-assistant/internal/domain"
)

// systemPrompt instructs the model to emit the structured JSON schema
// the normalizer expects.
const systemPrompt = `You are a senior radiologist. Analyze the chest X-ray image and generate a structured JSON report.

The report must follow this exact JSON schema:
{
  "findings": [
    {
      "finding": "string (e.g., 'Cardiomegaly', 'Pleural Effusion')",
      "location": "string (e.g., 'right lower lobe', 'bilateral')",
      "evidence": "string (detailed description of visual evidence)",
      "confidence": float (0.0 to 1.0, where 1.0 is highest confidence),
      "severity": "string (e.g., 'mild', 'moderate', 'severe')"
    }
  ],
  "impression": "string (overall clinical interpretation)",
  "recommendations": [
    "string (clinical recommendation 1)",
    "string (clinical recommendation 2)"
  ],
  "metadata": {
    "image_quality": "string (e.g., 'adequate', 'suboptimal')",
    "view": "string (e.g., 'PA', 'AP', 'lateral')",
    "technique": "string (brief description)"
  }
}

Important:
- Each finding must include specific visual evidence from the image
- Confidence scores should reflect certainty based on image clarity and findings
- Use standard radiological terminology
- Return ONLY valid JSON, no additional text`

// Client calls an OpenAI-compatible chat completions endpoint with
// vision support.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxImageDim int
	httpClient  *http.Client
	rateLimit   *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *logrus.Logger
}

// NewClient creates a new vision model client
func NewClient(cfg domain.VisionConfig, logger *logrus.Logger) *Client {
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 2
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "VisionModel",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Vision model circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxImageDim: cfg.MaxImageDim,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(limit), 1),
		breaker:   breaker,
		logger:    logger,
	}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// chatMessage is one message in the chat completions request.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// imageContent is the multimodal content block carrying the image.
type imageContent struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// chatRequest is the chat completions request payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatResponse is the chat completions response payload.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Describe sends the image to the vision model and returns the raw
// response text. Failures surface immediately; there is no retry.
func (c *Client) Describe(ctx context.Context, image []byte, imageName string) (string, error) {
	if c.apiKey == "" {
		return "", domain.NewServiceError(domain.ErrUpstream, "vision model API key not configured", nil)
	}

	encoded, err := encodeImage(image, c.maxImageDim)
	if err != nil {
		return "", domain.NewServiceError(domain.ErrInvalidInput, "unable to decode uploaded image", err)
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", domain.NewServiceError(domain.ErrUpstream, "vision model request canceled", err)
	}

	c.logger.WithFields(logrus.Fields{
		"image": imageName,
		"model": c.model,
	}).Debug("Requesting vision model description")

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, encoded)
	})
	if err != nil {
		var se *domain.ServiceError
		if errors.As(err, &se) {
			return "", se
		}
		return "", domain.NewServiceError(domain.ErrUpstream, "vision model call failed", err)
	}

	return result.(string), nil
}

// complete performs the HTTP round trip to the chat completions endpoint.
func (c *Client) complete(ctx context.Context, encodedImage string) (string, error) {
	img := imageContent{Type: "image_url"}
	img.ImageURL.URL = "data:image/jpeg;base64," + encodedImage

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []imageContent{img}},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NewServiceError(domain.ErrUpstream, "vision model request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewServiceError(domain.ErrUpstream, "failed to read vision model response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", domain.NewServiceError(domain.ErrUpstream,
			"vision model reported rate limiting or insufficient quota", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.NewServiceError(domain.ErrUpstream,
			fmt.Sprintf("vision model returned status %d", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.NewServiceError(domain.ErrUpstream, "unreadable vision model response", err)
	}
	if parsed.Error != nil {
		return "", domain.NewServiceError(domain.ErrUpstream,
			fmt.Sprintf("vision model error: %s", parsed.Error.Message), nil)
	}
	if len(parsed.Choices) == 0 {
		return "", domain.NewServiceError(domain.ErrUpstream, "vision model returned no choices", nil)
	}

	return parsed.Choices[0].Message.Content, nil
}
