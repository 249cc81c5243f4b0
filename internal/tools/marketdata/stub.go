package marketdata

import (
	"context"
	"time"
)

// StubProvider is a deterministic Provider for local/dev/test environments
// without a live market-data subscription. Quote always returns 172.34 for
// any symbol, matching the fixed price the test suite expects from "the
// stub upstream" (spec.md's stock-quote-tool scenario).
type StubProvider struct{}

func (StubProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	return Quote{
		Symbol:        symbol,
		Price:         172.34,
		Currency:      "USD",
		Change:        1.12,
		ChangePercent: 0.65,
		AsOf:          time.Now().UTC(),
	}, nil
}

func (StubProvider) History(ctx context.Context, symbol string, days int) ([]HistoryPoint, error) {
	points := make([]HistoryPoint, 0, days)
	base := 170.0
	now := time.Now().UTC()
	for i := days - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i)
		price := base + float64(days-i)*0.2
		points = append(points, HistoryPoint{
			Date:   date.Format("2006-01-02"),
			Open:   price - 0.5,
			High:   price + 0.8,
			Low:    price - 1.0,
			Close:  price,
			Volume: 1_000_000 + int64(i)*1000,
		})
	}
	return points, nil
}

func (StubProvider) News(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	items := []NewsItem{
		{Headline: symbol + " beats quarterly earnings estimates", Source: "stub-wire", Sentiment: "positive", PublishedAt: time.Now().UTC()},
		{Headline: symbol + " announces new product lineup", Source: "stub-wire", Sentiment: "neutral", PublishedAt: time.Now().UTC().Add(-24 * time.Hour)},
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items, nil
}
