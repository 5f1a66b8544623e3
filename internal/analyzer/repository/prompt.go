package repository

import (
	"fmt"
	"strings"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/pkg/utils"
)

const maxPromptContentRunes = 2000

// BuildSymbolAnalysisPrompt assembles the analysis prompt for one symbol from
// its recent news, price history, and current position.
func BuildSymbolAnalysisPrompt(symbol string, news []entity.NewsItem, prices []entity.PriceObservation, holding *entity.Holding) string {
	var b strings.Builder

	b.WriteString("You are an equity analyst. Analyze the data below for symbol ")
	b.WriteString(symbol)
	b.WriteString(" and respond with ONLY a JSON object of this exact shape:\n")
	b.WriteString(`{"stance": "BULL|BEAR|NEUTRAL", "confidence_score": 0.0, "summary": "...", "key_factors": ["..."]}`)
	b.WriteString("\nconfidence_score is between 0 and 1.\n\n")

	if holding != nil {
		fmt.Fprintf(&b, "Current position: %s shares, break-even %s, total cost %s.\n",
			holding.Quantity.String(), holding.BreakEvenPrice.String(), holding.TotalCost.String())
		if holding.Notes != "" {
			fmt.Fprintf(&b, "Position notes: %s\n", holding.Notes)
		}
		b.WriteString("\n")
	}

	if len(prices) > 0 {
		b.WriteString("Recent prices (oldest first):\n")
		for _, p := range prices {
			fmt.Fprintf(&b, "- %s %s %s\n", utils.FormatRFC3339(p.Timestamp), p.Price.String(), p.Session)
		}
		b.WriteString("\n")
	}

	if len(news) > 0 {
		b.WriteString("Recent news (newest first):\n")
		for i := range news {
			item := &news[i]
			fmt.Fprintf(&b, "[%s] %s (%s)\n", utils.FormatRFC3339(item.PublishedAt), item.Headline, item.Source)
			if item.Content != "" {
				fmt.Fprintf(&b, "%s\n", utils.Truncate(item.Content, maxPromptContentRunes))
			}
		}
	} else {
		b.WriteString("No recent news available; base the analysis on price action alone.\n")
	}

	return b.String()
}
