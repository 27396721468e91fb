package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/witnz/landledger/internal/ledger"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Manager struct {
	enabled      bool
	slackWebhook string
	httpClient   HTTPClient
	now          func() time.Time
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

func NewManager(enabled bool, slackWebhook string) *Manager {
	return NewManagerWithClient(enabled, slackWebhook, &http.Client{Timeout: 10 * time.Second})
}

func NewManagerWithClient(enabled bool, slackWebhook string, client HTTPClient) *Manager {
	return &Manager{
		enabled:      enabled,
		slackWebhook: slackWebhook,
		httpClient:   client,
		now:          time.Now,
	}
}

// Enabled reports whether alerts will actually be delivered.
func (m *Manager) Enabled() bool {
	return m.enabled && m.slackWebhook != ""
}

// SendCorruptionAlert reports the first corrupted record found by a chain check.
func (m *Manager) SendCorruptionAlert(ctx context.Context, c ledger.Corruption, length int) error {
	if !m.Enabled() {
		return nil
	}

	title := "Ledger Corruption"
	switch c.Kind {
	case ledger.ContentMismatch:
		title = "Record Content Modified"
	case ledger.LinkageBroken:
		title = "Hash Chain Broken"
	case ledger.IndexMismatch:
		title = "Record Sequence Altered"
	}

	msg := slackMessage{
		Text: "🚨 *LAND LEDGER TAMPERING DETECTED*",
		Attachments: []slackAttachment{
			{
				Color: "danger",
				Title: title,
				Fields: []slackField{
					{Title: "Record", Value: fmt.Sprintf("%d of %d", c.Index, length), Short: true},
					{Title: "Kind", Value: string(c.Kind), Short: true},
					{Title: "Expected", Value: c.Expected, Short: false},
					{Title: "Actual", Value: c.Actual, Short: false},
				},
				Footer: "Land Ledger Tamper Detection",
				Ts:     m.now().Unix(),
			},
		},
	}

	return m.sendSlackMessage(ctx, msg)
}

func (m *Manager) SendSystemAlert(ctx context.Context, title, message, severity string) error {
	if !m.Enabled() {
		return nil
	}

	color := "danger"
	if severity == "warning" {
		color = "warning"
	} else if severity == "good" {
		color = "good"
	}

	msg := slackMessage{
		Text: fmt.Sprintf("🚨 *SYSTEM ALERT: %s*", title),
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: title,
				Fields: []slackField{
					{Title: "Message", Value: message, Short: false},
				},
				Footer: "Land Ledger System Monitor",
				Ts:     m.now().Unix(),
			},
		},
	}

	return m.sendSlackMessage(ctx, msg)
}

func (m *Manager) sendSlackMessage(ctx context.Context, msg slackMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.slackWebhook, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned non-200 status: %d", resp.StatusCode)
	}

	return nil
}
