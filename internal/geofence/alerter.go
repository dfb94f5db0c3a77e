package geofence

import (
	"context"
	"log/slog"
)

// Alert is a user-facing danger notification.
type Alert struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// dangerAlert mirrors the notification shown when a danger zone is entered.
var dangerAlert = Alert{
	Title:   "High Risk Zone Detected!",
	Message: "You have entered a restricted or dangerous area. Please take necessary precautions and consider moving to a safer location.",
}

// Alerter delivers danger-zone alerts. Implementations must tolerate being
// called repeatedly for the same zone: every entry alerts, without
// suppression.
type Alerter interface {
	Alert(ctx context.Context, alert Alert)
}

// SlogAlerter logs alerts through the structured logger. Stands in for a push
// notification channel.
type SlogAlerter struct {
	Logger *slog.Logger
}

func (a SlogAlerter) Alert(ctx context.Context, alert Alert) {
	if a.Logger != nil {
		a.Logger.WarnContext(ctx, "geofence alert",
			"title", alert.Title,
			"message", alert.Message,
		)
	}
}
