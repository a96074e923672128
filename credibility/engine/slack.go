package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/monitor"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Client          *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendActivation(ctx context.Context, rep *monitor.Report) error {
	msg := "⚠️ Pinokio: review bombing detected ⚠️\n"
	msg += fmt.Sprintf("%d of %d recent posts scored Unknown or Warning (%.0f%%)\n", rep.Suspect, rep.Sample, rep.SuspectFraction()*100)
	msg += fmt.Sprintf("Flagged for manual review: `%d` posts\n", len(rep.Flagged))
	msg += "New posts now bypass scoring until an operator resets the moderation mode.\n"
	return n.sendSlackMsg(ctx, msg)
}

func (n *SlackNotifier) SendModeChange(ctx context.Context, mode modestore.Mode, source string) error {
	msg := fmt.Sprintf("Pinokio moderation mode set to `%s` by %s\n", mode, source)
	return n.sendSlackMsg(ctx, msg)
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
