package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Channel delivers rendered text to an external messaging API. Implementations
// must respect the context deadline; the engine treats any error, including
// timeout, as a swallowed dispatch failure.
type Channel interface {
	Send(ctx context.Context, recipientHandle, text string) error
}

// HTTPChannel posts messages to a chat-bot style HTTP API.
type HTTPChannel struct {
	APIURL   string
	BotToken string
	Client   *http.Client
}

// NewHTTPChannel builds a channel with the dispatch timeout baked into the
// underlying client so a slow API cannot stall the caller.
func NewHTTPChannel(apiURL, botToken string, timeout time.Duration) *HTTPChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPChannel{
		APIURL:   apiURL,
		BotToken: botToken,
		Client:   &http.Client{Timeout: timeout},
	}
}

type channelMessage struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Format    string `json:"format"`
}

func (c *HTTPChannel) Send(ctx context.Context, recipientHandle, text string) error {
	data, err := json.Marshal(channelMessage{Recipient: recipientHandle, Text: text, Format: "markdown"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BotToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BotToken)
	}
	res, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
