package predict

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
)

// trainingWindowDays is how much history is fetched to (re)train a
// symbol's model, wide enough to cover at least two full weekly cycles
// past the minimum the fit requires.
const trainingWindowDays = 90

// Config tunes the engine's behavior.
type Config struct {
	// AutoTrain trains a symbol's model on its first forecast request
	// if no trained model exists yet, instead of returning
	// ErrModelUnavailable.
	AutoTrain bool
	// TrainingWindowDays overrides trainingWindowDays when non-zero.
	TrainingWindowDays int
}

// DefaultConfig returns the engine defaults: auto-train enabled, the
// standard 90-day training window.
func DefaultConfig() Config {
	return Config{AutoTrain: true, TrainingWindowDays: trainingWindowDays}
}

// Engine trains and serves per-symbol forecasts over a pluggable
// history provider. It is safe for concurrent use.
type Engine struct {
	cfg     Config
	history HistoryProvider
	store   *Store
}

// New builds a prediction engine over the given history provider.
func New(cfg Config, history HistoryProvider) *Engine {
	if cfg.TrainingWindowDays <= 0 {
		cfg.TrainingWindowDays = trainingWindowDays
	}
	return &Engine{cfg: cfg, history: history, store: newStore()}
}

// Train fetches history for symbol and (re)fits its model, replacing
// any previously trained model.
func (e *Engine) Train(ctx context.Context, symbol string) error {
	history, err := e.history.History(ctx, symbol, e.cfg.TrainingWindowDays)
	if err != nil {
		return gatewayerr.New(gatewayerr.UpstreamUnavailable, "failed to fetch history for training", err)
	}
	m, err := fit(history)
	if err != nil {
		return err
	}
	e.store.put(symbol, m)
	return nil
}

// Forecast produces a forecast for symbol over horizon trading days. If
// no model is trained yet: when AutoTrain is set it trains one on the
// fly; otherwise it returns ErrModelUnavailable.
func (e *Engine) Forecast(ctx context.Context, symbol string, horizon int) (Forecast, error) {
	if horizon < minHorizonDays || horizon > maxHorizonDays {
		return Forecast{}, gatewayerr.New(gatewayerr.InvalidRequest, "horizon must be between 1 and 30 trading days", nil)
	}

	m, ok := e.store.get(symbol)
	if !ok {
		if !e.cfg.AutoTrain {
			return Forecast{}, ErrModelUnavailable
		}
		if err := e.Train(ctx, symbol); err != nil {
			return Forecast{}, err
		}
		m, _ = e.store.get(symbol)
	}

	return m.project(symbol, horizon), nil
}

// TrainedSymbols lists every symbol with a model in memory, for
// scheduled-retraining and admin-stats use.
func (e *Engine) TrainedSymbols() []string {
	return e.store.symbols()
}

// RetrainAll re-fits every currently trained symbol's model against
// fresh history, used by the scheduled background retrain job. It
// keeps going past individual symbol failures so one bad upstream
// response does not stall the whole sweep, returning the first error
// encountered (if any) after attempting all symbols.
func (e *Engine) RetrainAll(ctx context.Context) error {
	var first error
	for _, sym := range e.store.symbols() {
		if err := e.Train(ctx, sym); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type forecastArgs struct {
	Symbol  string `json:"symbol"`
	Horizon int    `json:"horizon"`
}

// Descriptor returns the predict_price registry descriptor. It is
// marked Heavy: forecasting may trigger an on-the-fly training pass.
func (e *Engine) Descriptor() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "predict_price",
		Description: "Forecast a stock's closing price over a 1-30 trading day horizon using a deterministic trend/seasonal model.",
		Schema: mustSchema(map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"symbol":  map[string]interface{}{"type": "string", "description": "Ticker symbol, e.g. AAPL."},
				"horizon": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 30, "description": "Number of trading days to forecast (default 5)."},
			},
			"required": []string{"symbol"},
		}),
		Capabilities:   []string{"prediction"},
		Heavy:          true,
		DefaultTimeout: 10 * time.Second,
	}
}

// Handle implements the predict_price tool handler.
func (e *Engine) Handle(ctx context.Context, params json.RawMessage) (string, error) {
	var args forecastArgs
	if err := json.Unmarshal(params, &args); err != nil || args.Symbol == "" {
		return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "symbol is required", err)
	}
	if args.Horizon == 0 {
		args.Horizon = 5
	}

	forecast, err := e.Forecast(ctx, args.Symbol, args.Horizon)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(forecast)
	if err != nil {
		return "", gatewayerr.New(gatewayerr.Internal, "failed to encode forecast", err)
	}
	return string(payload), nil
}

func mustSchema(schema map[string]interface{}) json.RawMessage {
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}
