package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NtfyChannel sends notifications via ntfy.sh or self-hosted ntfy.
type NtfyChannel struct {
	ServerURL string
	Topic     string
	Token     string // Optional auth token
	client    *http.Client
}

// NtfyConfig configures an ntfy channel.
type NtfyConfig struct {
	ServerURL string `mapstructure:"server"`
	Topic     string `mapstructure:"topic"`
	Token     string `mapstructure:"token"`
}

// NewNtfyChannel creates a new ntfy notification channel.
func NewNtfyChannel(cfg NtfyConfig) *NtfyChannel {
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = "https://ntfy.sh"
	}
	return &NtfyChannel{
		ServerURL: strings.TrimSuffix(serverURL, "/"),
		Topic:     cfg.Topic,
		Token:     cfg.Token,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Type returns the channel type.
func (n *NtfyChannel) Type() string {
	return "ntfy"
}

var ntfyPriority = map[Priority]int{
	PriorityLow:    2,
	PriorityNormal: 3,
	PriorityHigh:   4,
	PriorityUrgent: 5,
}

// Send publishes msg to the topic using ntfy's JSON API.
func (n *NtfyChannel) Send(ctx context.Context, msg *Message) error {
	payload := map[string]any{
		"topic":   n.Topic,
		"title":   msg.Title,
		"message": msg.Body,
	}
	if len(msg.Tags) > 0 {
		payload["tags"] = msg.Tags
	}
	if p, ok := ntfyPriority[msg.Priority]; ok {
		payload["priority"] = p
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.ServerURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
