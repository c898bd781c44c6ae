package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// HTTPOptions configures an HTTP store.
type HTTPOptions struct {
	Client   *http.Client
	WatchURL string // Websocket endpoint; derived from the document URL when empty
	Dialer   *websocket.Dialer
}

// HTTP stores the list behind a remote document endpoint: GET returns the
// document and PUT replaces it. This is the client side of the score API.
type HTTP struct {
	url      string
	watchURL string
	client   *http.Client
	dialer   *websocket.Dialer
}

// NewHTTP returns a store for the document at url.
func NewHTTP(url string, opts HTTPOptions) *HTTP {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	watchURL := opts.WatchURL
	if watchURL == "" {
		watchURL = websocketURL(url)
	}
	return &HTTP{url: url, watchURL: watchURL, client: client, dialer: dialer}
}

// websocketURL maps http://host/api/highscores to ws://host/api/highscores/ws.
func websocketURL(url string) string {
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimSuffix(url, "/") + "/ws"
}

func (h *HTTP) Load(ctx context.Context) ([]leaderboard.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %s", h.url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.url, err)
	}
	return Decode(data)
}

func (h *HTTP) Save(ctx context.Context, records []leaderboard.Record) error {
	data, err := Encode(records)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("put %s: %w", h.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("put %s: unexpected status %s", h.url, resp.Status)
	}
	return nil
}

// Watch subscribes to the websocket endpoint and calls fn with every document
// pushed by the server. It returns when ctx is done or the connection drops.
func (h *HTTP) Watch(ctx context.Context, fn func([]leaderboard.Record)) error {
	conn, _, err := h.dialer.DialContext(ctx, h.watchURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", h.watchURL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read %s: %w", h.watchURL, err)
		}
		records, err := Decode(data)
		if err != nil {
			return err
		}
		fn(records)
	}
}
