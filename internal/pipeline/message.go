package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

// flexMessage is the rich message body accepted by the bot messaging API.
type flexMessage struct {
	Content flexContent `json:"content"`
}

type flexContent struct {
	Type     string     `json:"type"`
	AltText  string     `json:"altText"`
	Contents flexBubble `json:"contents"`
}

type flexBubble struct {
	Type   string    `json:"type"`
	Header *flexBox  `json:"header,omitempty"`
	Body   *flexBox  `json:"body,omitempty"`
	Styles *flexWrap `json:"styles,omitempty"`
}

type flexBox struct {
	Type     string     `json:"type"`
	Layout   string     `json:"layout"`
	Contents []flexText `json:"contents"`
}

type flexText struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Weight string `json:"weight,omitempty"`
	Size   string `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

type flexWrap struct {
	Header flexStyle `json:"header"`
}

type flexStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// RenderMessage builds the rich alert message for one notification: the
// level title as a colored header, then the day, region, and each peak
// point with its reading.
func RenderMessage(payload domain.NotificationPayload) (json.RawMessage, error) {
	level := payload.AlertLevel

	body := []flexText{
		{Type: "text", Text: level.Subtitle, Size: "sm", Wrap: true},
		{Type: "text", Text: fmt.Sprintf("%s / %s", payload.Day, payload.Region.Name), Size: "sm"},
	}
	for _, pm := range payload.Points {
		body = append(body, flexText{
			Type: "text",
			Text: fmt.Sprintf("%s: %.1f (%s)", pm.Point.Name, pm.Forecast.Value, level.Title),
			Size: "sm",
		})
	}
	if level.Description != "" {
		body = append(body, flexText{Type: "text", Text: level.Description, Size: "xs", Wrap: true})
	}

	msg := flexMessage{
		Content: flexContent{
			Type:    "flex",
			AltText: AltText(payload),
			Contents: flexBubble{
				Type: "bubble",
				Header: &flexBox{
					Type:   "box",
					Layout: "vertical",
					Contents: []flexText{{
						Type:   "text",
						Text:   level.Title,
						Weight: "bold",
						Size:   "lg",
						Color:  level.TextColor,
					}},
				},
				Body: &flexBox{
					Type:     "box",
					Layout:   "vertical",
					Contents: body,
				},
				Styles: &flexWrap{
					Header: flexStyle{BackgroundColor: level.BackgroundColor},
				},
			},
		},
	}
	return json.Marshal(msg)
}

// AltText is the plain-text fallback shown in chat lists and push previews.
func AltText(payload domain.NotificationPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", payload.AlertLevel.Title, payload.Day, payload.Region.Name)
	for _, pm := range payload.Points {
		fmt.Fprintf(&b, " %s %.1f", pm.Point.Name, pm.Forecast.Value)
	}
	return b.String()
}
