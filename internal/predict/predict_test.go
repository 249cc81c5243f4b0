package predict

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/tools/marketdata"
)

type stubHistory struct {
	points []marketdata.HistoryPoint
	err    error
}

func (s stubHistory) History(ctx context.Context, symbol string, days int) ([]marketdata.HistoryPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	if days >= len(s.points) {
		return s.points, nil
	}
	return s.points[len(s.points)-days:], nil
}

func genHistory(n int, start time.Time) []marketdata.HistoryPoint {
	points := make([]marketdata.HistoryPoint, 0, n)
	d := start
	for len(points) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			price := 100.0 + float64(len(points))*0.5
			points = append(points, marketdata.HistoryPoint{
				Date:  d.Format("2006-01-02"),
				Open:  price,
				High:  price + 1,
				Low:   price - 1,
				Close: price,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return points
}

func TestForecastAutoTrainsAndProjectsUpwardTrend(t *testing.T) {
	history := stubHistory{points: genHistory(60, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(DefaultConfig(), history)

	forecast, err := engine.Forecast(context.Background(), "AAPL", 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(forecast.Points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(forecast.Points))
	}
	if forecast.Points[len(forecast.Points)-1].Price <= forecast.Points[0].Price {
		t.Errorf("expected upward-trending forecast, got %+v", forecast.Points)
	}
}

func TestForecastInsufficientHistory(t *testing.T) {
	history := stubHistory{points: genHistory(3, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(DefaultConfig(), history)

	_, err := engine.Forecast(context.Background(), "AAPL", 5)
	if !errorIs(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestForecastWithoutAutoTrainReturnsModelUnavailable(t *testing.T) {
	history := stubHistory{points: genHistory(60, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(Config{AutoTrain: false}, history)

	_, err := engine.Forecast(context.Background(), "AAPL", 5)
	if !errorIs(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestForecastRejectsOutOfRangeHorizon(t *testing.T) {
	history := stubHistory{points: genHistory(60, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(DefaultConfig(), history)

	if _, err := engine.Forecast(context.Background(), "AAPL", 0); err == nil {
		t.Error("expected error for zero horizon")
	}
	if _, err := engine.Forecast(context.Background(), "AAPL", 31); err == nil {
		t.Error("expected error for horizon over 30")
	}
}

func TestHandleDefaultsHorizonTo5(t *testing.T) {
	history := stubHistory{points: genHistory(60, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(DefaultConfig(), history)

	out, err := engine.Handle(context.Background(), json.RawMessage(`{"symbol":"AAPL"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	var forecast Forecast
	if err := json.Unmarshal([]byte(out), &forecast); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if forecast.Horizon != 5 {
		t.Errorf("expected default horizon 5, got %d", forecast.Horizon)
	}
}

func TestRetrainAllRefitsTrainedSymbols(t *testing.T) {
	history := stubHistory{points: genHistory(60, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
	engine := New(DefaultConfig(), history)

	if _, err := engine.Forecast(context.Background(), "AAPL", 3); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if got := engine.TrainedSymbols(); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("expected [AAPL] trained, got %v", got)
	}
	if err := engine.RetrainAll(context.Background()); err != nil {
		t.Fatalf("RetrainAll: %v", err)
	}
}

func errorIs(err, target error) bool {
	ge, ok := gatewayerr.As(err)
	if !ok {
		return false
	}
	gt, ok := gatewayerr.As(target)
	if !ok {
		return false
	}
	return ge.Kind == gt.Kind
}
