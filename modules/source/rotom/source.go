package rotom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/flemzord/pulse/internal/security"
	"github.com/flemzord/pulse/internal/watch"
)

// Compile-time interface check.
var _ watch.DeviceSource = (*Source)(nil)

// Source reads device activity from the Rotom status endpoint.
type Source struct {
	baseURL  string
	bearer   string
	apiKey   string
	username string
	password string
	maxBytes int
	http     *http.Client
	logger   *slog.Logger
}

// NewSource builds a Source from a validated config.
func NewSource(cfg Config, logger *slog.Logger) (*Source, error) {
	base, err := NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Source{
		baseURL:  base,
		bearer:   cfg.Bearer,
		apiKey:   cfg.APIKey,
		username: cfg.Username,
		password: cfg.Password,
		maxBytes: cfg.MaxResponseBytes,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}, nil
}

// BaseURL returns the normalised API root.
func (s *Source) BaseURL() string {
	return s.baseURL
}

type statusResponse struct {
	Devices []deviceStatus `json:"devices"`
}

type deviceStatus struct {
	DeviceID                string      `json:"deviceId"`
	DateLastMessageReceived json.Number `json:"dateLastMessageReceived"`
	DateLastMessageSent     json.Number `json:"dateLastMessageSent"`
}

// lastSeenMillis is the larger of the two message timestamps, 0 when both
// are absent or unparsable.
func (d deviceStatus) lastSeenMillis() int64 {
	return max(millis(d.DateLastMessageReceived), millis(d.DateLastMessageSent), 0)
}

func millis(n json.Number) int64 {
	if n == "" {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return int64(f)
	}
	return 0
}

// DevicesLastSeen implements watch.DeviceSource. Devices are sorted by ID;
// entries without an ID are dropped.
func (s *Source) DevicesLastSeen(ctx context.Context) ([]watch.DeviceLastSeen, error) {
	raw, err := s.get(ctx, "/api/status")
	if err != nil {
		return nil, err
	}

	var status statusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("rotom: decode status: %w", err)
	}

	out := make([]watch.DeviceLastSeen, 0, len(status.Devices))
	for _, d := range status.Devices {
		id := strings.TrimSpace(d.DeviceID)
		if id == "" {
			continue
		}
		var seen time.Time
		if ms := d.lastSeenMillis(); ms > 0 {
			seen = time.UnixMilli(ms)
		}
		out = append(out, watch.DeviceLastSeen{DeviceID: id, LastSeen: seen})
	}
	slices.SortFunc(out, func(a, b watch.DeviceLastSeen) int {
		return strings.Compare(a.DeviceID, b.DeviceID)
	})

	s.logger.Debug("rotom: status fetched", "devices", len(out))
	return out, nil
}

func (s *Source) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("rotom: create GET %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+s.bearer)
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rotom: GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := s.maxBytes
	if limit <= 0 {
		limit = security.DefaultMaxMessageSize
	}
	// One extra byte so an oversized body is detected instead of truncated.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("rotom: read GET %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("rotom: GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := security.ValidateMessageSize(raw, limit); err != nil {
		return nil, fmt.Errorf("rotom: GET %s: %w", path, err)
	}
	if err := security.ValidateJSONDepth(raw, 0); err != nil {
		return nil, fmt.Errorf("rotom: GET %s: %w", path, err)
	}
	return raw, nil
}
