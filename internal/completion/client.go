// Package completion submits prompts to an OpenAI-compatible chat completions
// endpoint such as the one served by LM Studio.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultModel is sent when Options names no model. LM Studio answers with
	// whichever model is loaded.
	DefaultModel = "local-model"
	// DefaultTemperature is the sampling temperature used when Options.Temperature is negative.
	DefaultTemperature = 0.7
	// DefaultMaxTokens bounds the response length when Options leaves it unset.
	DefaultMaxTokens = 2048
	// DefaultTimeout bounds one request when Options leaves it unset.
	DefaultTimeout = 30 * time.Second

	userRole                  = "user"
	headerContentType         = "Content-Type"
	headerAccept              = "Accept"
	headerAuthorization       = "Authorization"
	contentTypeJSON           = "application/json"
	authorizationBearerPrefix = "Bearer "
	maxErrorBodyBytes         = 8 * 1024
)

var (
	errMissingEndpoint = errors.New("completion endpoint is required")
	errEmptyPrompt     = errors.New("prompt is empty")
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	Endpoint    string
	Model       string
	Temperature float64
	MaxTokens   int
	// Timeout bounds the whole request; a negative value disables it.
	Timeout time.Duration
	// APIKey is sent as a bearer token when set.
	APIKey     string
	HTTPClient httpClient
	Logger     *zap.Logger
}

// Client sends one prompt per request and returns the assistant message.
type Client struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	apiKey      string
	client      httpClient
	logger      *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// chatResponse uses pointers so an absent message or content is told apart
// from an empty reply.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewClient validates options and returns a Client. An empty Model, a negative
// Temperature, a MaxTokens of zero or less and a zero Timeout take the package
// defaults; a zero Temperature is sent as is.
func NewClient(options Options) (*Client, error) {
	endpoint := strings.TrimSpace(options.Endpoint)
	if endpoint == "" {
		return nil, errMissingEndpoint
	}
	model := strings.TrimSpace(options.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := options.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	client := options.HTTPClient
	if client == nil {
		timeout := options.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		if timeout < 0 {
			timeout = 0
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		apiKey:      strings.TrimSpace(options.APIKey),
		client:      client,
		logger:      logger,
	}, nil
}

// Endpoint returns the URL requests are sent to.
func (client *Client) Endpoint() string {
	return client.endpoint
}

// Submit sends prompt as a single user message and returns the content of the
// first choice. It never retries.
func (client *Client) Submit(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errEmptyPrompt
	}
	requestBody, encodeError := json.Marshal(chatRequest{
		Model:       client.model,
		Messages:    []chatMessage{{Role: userRole, Content: prompt}},
		Temperature: client.temperature,
		MaxTokens:   client.maxTokens,
		Stream:      false,
	})
	if encodeError != nil {
		return "", fmt.Errorf("encode completion request: %w", encodeError)
	}

	request, requestError := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint, bytes.NewReader(requestBody))
	if requestError != nil {
		return "", &NetworkError{Endpoint: client.endpoint, Err: requestError}
	}
	request.Header.Set(headerContentType, contentTypeJSON)
	request.Header.Set(headerAccept, contentTypeJSON)
	if client.apiKey != "" {
		request.Header.Set(headerAuthorization, authorizationBearerPrefix+client.apiKey)
	}

	client.logger.Debug("Submitting completion request",
		zap.String("endpoint", client.endpoint),
		zap.String("model", client.model),
		zap.Int("promptBytes", len(prompt)))
	startTime := time.Now()
	response, doError := client.client.Do(request)
	if doError != nil {
		return "", &NetworkError{Endpoint: client.endpoint, Err: doError}
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return "", &HTTPError{Endpoint: client.endpoint, StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload chatResponse
	if decodeError := json.NewDecoder(response.Body).Decode(&payload); decodeError != nil {
		return "", &ResponseFormatError{Reason: "invalid JSON", Err: decodeError}
	}
	if len(payload.Choices) == 0 {
		return "", &ResponseFormatError{Reason: "no choices"}
	}
	firstMessage := payload.Choices[0].Message
	if firstMessage == nil || firstMessage.Content == nil {
		return "", &ResponseFormatError{Reason: "missing message content"}
	}
	client.logger.Debug("Received completion response",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("responseBytes", len(*firstMessage.Content)))
	return *firstMessage.Content, nil
}
