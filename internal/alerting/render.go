package alerting

import (
	"fmt"
	"html"
	"strings"
	"time"

	"coinsentry/internal/dedup"
	"coinsentry/internal/detector"
)

// RenderNews formats a news item for the channel. An empty summary drops the
// summary block entirely.
func RenderNews(item dedup.Item, summary string) Message {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("🔹 <b>%s</b>\n", html.EscapeString(item.Title)))
	if summary != "" {
		builder.WriteString("\n")
		builder.WriteString(html.EscapeString(summary))
		builder.WriteString("\n")
	}
	builder.WriteString(fmt.Sprintf("\n🔗 <a href=\"%s\">Read more</a>", item.Link))

	return Message{Text: builder.String()}
}

// RenderAlert formats a threshold-crossing price change.
func RenderAlert(event detector.AlertEvent) Message {
	emoji := "📈"
	if event.PctChange.Sign() < 0 {
		emoji = "📉"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s <b>%s</b> price alert\n", emoji, html.EscapeString(event.AssetID)))
	builder.WriteString(fmt.Sprintf("Rule: %s\n", describeKind(event.Kind)))
	builder.WriteString(fmt.Sprintf("Previous: %s\n", event.OldPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Current: %s\n", event.NewPrice.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Change: %s%% over %s", event.PctChange.StringFixed(2), formatElapsed(event.Elapsed)))

	return Message{Text: builder.String(), DisablePreview: true}
}

func describeKind(kind detector.Kind) string {
	switch kind {
	case detector.ShortWindow:
		return "short window"
	case detector.LongWindow:
		return "long window"
	default:
		return string(kind)
	}
}

func formatElapsed(elapsed time.Duration) string {
	return elapsed.Round(time.Second).String()
}
