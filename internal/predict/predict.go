// Package predict implements C13: a deterministic, dependency-light
// forecaster exposed as the optional predict_price tool. It blends a
// linear trend fit over the historical window with a seasonal-naive
// component (same weekday average deviation from trend), which keeps
// the executor fully specified without claiming a real ML training
// pipeline — per-symbol model training is an explicit non-goal of the
// core; this package only forecasts from whatever history it is given.
package predict

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/tools/marketdata"
)

// Kind-specific errors, named exactly as spec.md §4.13 requires. Each
// maps onto the shared gatewayerr taxonomy so the orchestrator and tool
// executor handle them the same way as every other tool error.
var (
	ErrInsufficientHistory = gatewayerr.New(gatewayerr.InvalidRequest, "insufficient history for forecast", nil)
	ErrModelUnavailable    = gatewayerr.New(gatewayerr.NotFound, "no trained model for symbol", nil)
	ErrUpstreamDataError   = gatewayerr.New(gatewayerr.UpstreamUnavailable, "history upstream error", nil)
)

// minHistoryDays is the shortest window a trend+seasonal fit can be
// computed over; below this, a single missing weekday would dominate
// the seasonal component.
const minHistoryDays = 14

// maxHorizonDays and minHorizonDays bound the requested forecast length.
const (
	minHorizonDays = 1
	maxHorizonDays = 30
)

// ForecastPoint is one predicted trading day.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// Forecast is the full response for one symbol.
type Forecast struct {
	Symbol    string          `json:"symbol"`
	Horizon   int             `json:"horizon"`
	Points    []ForecastPoint `json:"points"`
	Model     string          `json:"model"`
	TrainedAt time.Time       `json:"trained_at"`
}

// model holds the fitted parameters for one symbol: a linear trend
// (price = intercept + slope*dayIndex) plus a seasonal offset per
// weekday, both derived from the last history window it was trained on.
type model struct {
	slope         float64
	intercept     float64
	seasonalByDOW [7]float64
	lastDayIndex  int
	lastDate      time.Time
	trainedAt     time.Time
}

// fit computes a least-squares linear trend and per-weekday seasonal
// deviations from a chronologically ordered history.
func fit(history []marketdata.HistoryPoint) (*model, error) {
	if len(history) < minHistoryDays {
		return nil, ErrInsufficientHistory
	}

	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	dates := make([]time.Time, len(history))
	for i, h := range history {
		d, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: parse date %q: %v", ErrUpstreamDataError, h.Date, err)
		}
		dates[i] = d
		x := float64(i)
		y := h.Close
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	var slope float64
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	intercept := (sumY - slope*sumX) / n

	var seasonSum [7]float64
	var seasonCount [7]int
	for i, h := range history {
		trendAt := intercept + slope*float64(i)
		dow := int(dates[i].Weekday())
		seasonSum[dow] += h.Close - trendAt
		seasonCount[dow]++
	}
	var seasonal [7]float64
	for d := 0; d < 7; d++ {
		if seasonCount[d] > 0 {
			seasonal[d] = seasonSum[d] / float64(seasonCount[d])
		}
	}

	return &model{
		slope:         slope,
		intercept:     intercept,
		seasonalByDOW: seasonal,
		lastDayIndex:  len(history) - 1,
		lastDate:      dates[len(dates)-1],
		trainedAt:     time.Now().UTC(),
	}, nil
}

// project extrapolates the fitted model horizon trading days (Mon-Fri)
// past the last observed date.
func (m *model) project(symbol string, horizon int) Forecast {
	points := make([]ForecastPoint, 0, horizon)
	date := m.lastDate
	idx := m.lastDayIndex
	for len(points) < horizon {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		idx++
		trend := m.intercept + m.slope*float64(idx)
		price := trend + m.seasonalByDOW[int(date.Weekday())]
		points = append(points, ForecastPoint{
			Date:  date.Format("2006-01-02"),
			Price: math.Round(price*100) / 100,
		})
	}
	return Forecast{
		Symbol:    symbol,
		Horizon:   horizon,
		Points:    points,
		Model:     "trend+seasonal-naive",
		TrainedAt: m.trainedAt,
	}
}

// Store holds trained models keyed by symbol, guarded by a single mutex;
// the registry is small (one entry per distinct symbol ever requested)
// so fine-grained per-symbol locking buys nothing here.
type Store struct {
	mu     sync.RWMutex
	models map[string]*model
}

func newStore() *Store {
	return &Store{models: make(map[string]*model)}
}

func (s *Store) get(symbol string) (*model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[symbol]
	return m, ok
}

func (s *Store) put(symbol string, m *model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[symbol] = m
}

func (s *Store) symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.models))
	for sym := range s.models {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// HistoryProvider is the minimal collaborator the engine needs to train
// a model: a symbol's ordered historical bars. marketdata.Provider
// already implements this shape, so production wiring passes the same
// provider instance used by the quote/history/news tools.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, days int) ([]marketdata.HistoryPoint, error)
}
