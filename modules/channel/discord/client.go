package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/flemzord/pulse/internal/metrics"
	"golang.org/x/time/rate"
)

const (
	maxRetries       = 3
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	maxResponseBytes = 1 << 20

	// Discord allows 5 messages per 5 seconds per channel.
	sendBurst    = 5
	sendInterval = time.Second
)

// Client is a thin HTTP wrapper around the Discord REST API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Discord REST client authenticating as a bot.
func NewClient(token, baseURL string, timeout time.Duration) *Client {
	return &Client{
		token:   token,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Every(sendInterval), sendBurst),
	}
}

// WithLimiter replaces the outbound request limiter.
func (c *Client) WithLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// body builds a fresh request body for every attempt.
type body func() (io.Reader, string, error)

// do sends a request to path and decodes the JSON response into T.
// It handles 429 rate limiting with retry_after (max 3 attempts, exponential
// backoff when Discord does not say how long to wait).
func do[T any](ctx context.Context, c *Client, method, path string, build body) (*T, error) {
	url := c.baseURL + path
	backoff := initialBackoff

	for attempt := range maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("discord: %s %s: rate limit wait: %w", method, path, err)
		}

		var (
			reader      io.Reader
			contentType string
		)
		if build != nil {
			r, ct, err := build()
			if err != nil {
				return nil, fmt.Errorf("discord: build %s %s request: %w", method, path, err)
			}
			reader, contentType = r, ct
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("discord: create %s %s request: %w", method, path, err)
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		req.Header.Set("User-Agent", "DiscordBot (https://github.com/flemzord/pulse, 1)")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.IncDiscordRequest("error")
			return nil, fmt.Errorf("discord: %s %s request failed: %w", method, path, err)
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		metrics.IncDiscordRequest(statusClass(resp.StatusCode))
		if err != nil {
			return nil, fmt.Errorf("discord: read %s %s response: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries-1 {
			wait := retryAfter(resp.Header, respBody, backoff)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(respBody, apiErr)
			return nil, apiErr
		}

		var out T
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &out); err != nil {
				return nil, fmt.Errorf("discord: decode %s %s response: %w", method, path, err)
			}
		}
		return &out, nil
	}

	return nil, fmt.Errorf("discord: %s %s: max retries exceeded", method, path)
}

// retryAfter reads the wait from the JSON body, then the Retry-After header,
// falling back to the current backoff. The result is capped at maxBackoff.
func retryAfter(h http.Header, raw []byte, fallback time.Duration) time.Duration {
	wait := fallback
	var rl rateLimitBody
	if err := json.Unmarshal(raw, &rl); err == nil && rl.RetryAfter > 0 {
		wait = time.Duration(rl.RetryAfter * float64(time.Second))
	} else if s, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil && s > 0 {
		wait = time.Duration(s * float64(time.Second))
	}
	return min(wait, maxBackoff)
}

func statusClass(code int) string {
	switch {
	case code == http.StatusTooManyRequests:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func jsonBody(v any) body {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// multipartBody encodes payload as payload_json and data as files[0].
func multipartBody(payload createMessageRequest, filename string, data []byte) body {
	return func() (io.Reader, string, error) {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		ph := make(textproto.MIMEHeader)
		ph.Set("Content-Disposition", `form-data; name="payload_json"`)
		ph.Set("Content-Type", "application/json")
		pw, err := w.CreatePart(ph)
		if err != nil {
			return nil, "", err
		}
		if _, err := pw.Write(payloadJSON); err != nil {
			return nil, "", err
		}

		fh := make(textproto.MIMEHeader)
		fh.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[0]"; filename=%q`, filename))
		fh.Set("Content-Type", "text/plain; charset=utf-8")
		fw, err := w.CreatePart(fh)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, "", err
		}

		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	}
}

// CurrentUser returns the bot account behind the token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	return do[User](ctx, c, http.MethodGet, "/users/@me", nil)
}

// CreateMessage posts a plain text message.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) (*Message, error) {
	req := createMessageRequest{Content: content, AllowedMentions: allowedMentions{Parse: []string{}}}
	return do[Message](ctx, c, http.MethodPost, "/channels/"+channelID+"/messages", jsonBody(req))
}

// CreateMessageWithFile posts a message with one text attachment.
func (c *Client) CreateMessageWithFile(ctx context.Context, channelID, content, filename string, data []byte) (*Message, error) {
	req := createMessageRequest{
		Content:         content,
		AllowedMentions: allowedMentions{Parse: []string{}},
		Attachments:     []attachmentRef{{ID: 0, Filename: filename}},
	}
	return do[Message](ctx, c, http.MethodPost, "/channels/"+channelID+"/messages", multipartBody(req, filename, data))
}
