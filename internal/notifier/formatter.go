package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"

	"PriceOptimizer/internal/model"
)

var eventTitles = map[model.EventType]string{
	model.EventCreated: "New optimization",
	model.EventUpdated: "Optimization updated",
	model.EventDeleted: "Optimization deleted",
}

// Money formats v with two decimals.
func Money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatOptimization formats a record change into a Telegram HTML message.
func FormatOptimization(rec *model.Record, event model.EventType) string {
	var b strings.Builder

	title, ok := eventTitles[event]
	if !ok {
		title = string(event)
	}
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> | %s\n\n", title, html.EscapeString(rec.Name)))
	b.WriteString(fmt.Sprintf("Owner: %s\n", html.EscapeString(rec.OwnerID)))
	if event == model.EventDeleted {
		return b.String()
	}

	b.WriteString(fmt.Sprintf("Cost C(q): <code>%s</code>\n", html.EscapeString(rec.CostFunction)))
	b.WriteString(fmt.Sprintf("Demand Q(p): <code>%s</code>\n", html.EscapeString(rec.DemandFunction)))
	b.WriteString(fmt.Sprintf("Profit: <code>%s</code>\n\n", html.EscapeString(rec.ProfitFunction)))
	b.WriteString(fmt.Sprintf("💰 Optimal price: %s\n", Money(rec.OptimalPrice)))
	b.WriteString(fmt.Sprintf("   Max profit: %s\n", Money(rec.MaxProfit)))
	if !rec.Verified {
		b.WriteString("\n⚠️ No stationary point passed the concavity test; this is the best unverified candidate.\n")
	}
	if rec.ChartURL != "" {
		b.WriteString(fmt.Sprintf("\n<a href=\"%s\">Chart</a>\n", html.EscapeString(rec.ChartURL)))
	}
	return b.String()
}
