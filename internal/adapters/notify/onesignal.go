package notify

import (
	"context"
	"fmt"

	"github.com/okian/goalpulse/internal/domain/model"
)

const oneSignalAPI = "https://onesignal.com/api/v1/notifications"

// OneSignal pushes alerts to subscribed devices.
type OneSignal struct {
	settings
	appID  string
	apiKey string
}

// NewOneSignal builds a push notifier for the app.
func NewOneSignal(appID, apiKey string, opts ...Option) (*OneSignal, error) {
	if appID == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: onesignal app id and api key are required", ErrNotifierMisconfigured)
	}
	return &OneSignal{
		settings: applyOptions("onesignal", oneSignalAPI, opts),
		appID:    appID,
		apiKey:   apiKey,
	}, nil
}

// Name identifies the notifier.
func (n *OneSignal) Name() string { return "onesignal" }

type oneSignalPayload struct {
	AppID            string            `json:"app_id"`
	IncludedSegments []string          `json:"included_segments"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	Data             oneSignalData     `json:"data"`
}

type oneSignalData struct {
	Type    string      `json:"type"`
	Payload model.Alert `json:"payload"`
}

// Deliver creates one notification for the "Subscribed Users" segment.
func (n *OneSignal) Deliver(ctx context.Context, a model.Alert) error {
	payload := oneSignalPayload{
		AppID:            n.appID,
		IncludedSegments: []string{"Subscribed Users"},
		Headings:         map[string]string{"en": Title(a)},
		Contents:         map[string]string{"en": Message(a)},
		Data:             oneSignalData{Type: "level_alert", Payload: a},
	}
	headers := map[string]string{"Authorization": "Basic " + n.apiKey}
	if err := postJSON(ctx, n.client, n.endpoint, payload, headers); err != nil {
		return fmt.Errorf("onesignal: %w", err)
	}
	return nil
}
