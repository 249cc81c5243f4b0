package toolregistry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
)

// ExecutorConfig configures the parallel tool executor's concurrency,
// timeout, and retry behavior.
type ExecutorConfig struct {
	// MaxConcurrency limits the number of parallel tool executions.
	MaxConcurrency int

	// DefaultTimeout bounds a single tool call, including retries.
	DefaultTimeout time.Duration

	// DefaultRetries is the number of retries applied to a retryable
	// tool failure.
	DefaultRetries int

	// RetryBackoff is the initial backoff between retries.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff growth.
	MaxRetryBackoff time.Duration
}

// DefaultExecutorConfig mirrors the concurrency/backoff defaults the
// gateway ships with.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		MaxConcurrency:  5,
		DefaultTimeout:  10 * time.Second,
		DefaultRetries:  2,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	}
}

// ToolConfig holds per-tool overrides of the executor defaults.
type ToolConfig struct {
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

// Executor dispatches validated tool calls to the registry with
// semaphore-bounded concurrency, retry on retryable gatewayerr.Kinds, and
// panic recovery so a single misbehaving tool never takes down a round.
type Executor struct {
	registry   *Registry
	config     *ExecutorConfig
	toolConfig map[string]*ToolConfig
	mu         sync.RWMutex
	sem        chan struct{}
	metrics    *ExecutorMetrics
}

// ExecutorMetrics tracks aggregate execution counters for C12.
type ExecutorMetrics struct {
	mu              sync.Mutex
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// NewExecutor builds an executor bound to registry; a nil config falls
// back to DefaultExecutorConfig.
func NewExecutor(registry *Registry, config *ExecutorConfig) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		registry:   registry,
		config:     config,
		toolConfig: make(map[string]*ToolConfig),
		sem:        make(chan struct{}, config.MaxConcurrency),
		metrics:    &ExecutorMetrics{},
	}
}

// ConfigureTool sets a per-tool override, e.g. a longer timeout for a
// heavy tool.
func (e *Executor) ConfigureTool(name string, cfg *ToolConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toolConfig[name] = cfg
}

func (e *Executor) getToolConfig(name string) *ToolConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.toolConfig[name]
}

// ExecutionResult is the per-call outcome of one round of tool dispatch.
type ExecutionResult struct {
	ToolCallID string
	ToolName   string
	Content    string
	Err        error
	Duration   time.Duration
	Attempts   int
}

// ExecuteAll runs every call concurrently (bounded by the executor's
// semaphore) and returns results in the same order as calls, so callers
// can append them to conversation history in request order even though
// completion order may differ.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCallRequest) []*ExecutionResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]*ExecutionResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc models.ToolCallRequest) {
			defer wg.Done()
			results[idx] = e.Execute(ctx, tc)
		}(i, call)
	}
	wg.Wait()
	return results
}

// Execute runs a single tool call with retry and timeout handling,
// acquiring a semaphore slot first for backpressure.
func (e *Executor) Execute(ctx context.Context, call models.ToolCallRequest) *ExecutionResult {
	start := time.Now()
	result := &ExecutionResult{ToolCallID: call.ID, ToolName: call.ToolName}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		result.Err = gatewayerr.New(gatewayerr.Timeout, "tool dispatch cancelled before start", ctx.Err())
		result.Duration = time.Since(start)
		return result
	}

	tc := e.getToolConfig(call.ToolName)
	timeout := e.config.DefaultTimeout
	maxRetries := e.config.DefaultRetries
	backoff := e.config.RetryBackoff
	if tc != nil {
		if tc.Timeout > 0 {
			timeout = tc.Timeout
		}
		if tc.Retries >= 0 {
			maxRetries = tc.Retries
		}
		if tc.RetryBackoff > 0 {
			backoff = tc.RetryBackoff
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt + 1

		content, err := e.executeWithTimeout(ctx, call, timeout)
		if err == nil {
			result.Content = content
			result.Duration = time.Since(start)
			e.recordSuccess(attempt)
			return result
		}
		lastErr = err

		if !gatewayerr.KindOf(err).Retryable() || ctx.Err() != nil || attempt >= maxRetries {
			break
		}

		sleep := backoff * time.Duration(1<<uint(attempt))
		if sleep > e.config.MaxRetryBackoff {
			sleep = e.config.MaxRetryBackoff
		}
		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = gatewayerr.New(gatewayerr.Timeout, "context cancelled during retry backoff", ctx.Err())
		}
	}

	result.Err = lastErr
	result.Duration = time.Since(start)
	e.recordFailure(lastErr)
	return result
}

func (e *Executor) recordSuccess(attempt int) {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	e.metrics.TotalExecutions++
	if attempt > 0 {
		e.metrics.TotalRetries += int64(attempt)
	}
}

func (e *Executor) recordFailure(err error) {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	e.metrics.TotalExecutions++
	e.metrics.TotalFailures++
	switch gatewayerr.KindOf(err) {
	case gatewayerr.Timeout:
		e.metrics.TotalTimeouts++
	case gatewayerr.Internal:
		e.metrics.TotalPanics++
	}
}

// executeWithTimeout runs the registry invocation under a bounded
// sub-context and recovers a panicking handler into an Internal error
// instead of crashing the round.
func (e *Executor) executeWithTimeout(ctx context.Context, call models.ToolCallRequest, timeout time.Duration) (content string, err error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: gatewayerr.New(gatewayerr.Internal, fmt.Sprintf("tool %s panicked: %v", call.ToolName, r), fmt.Errorf("%v\n%s", r, debug.Stack()))}
			}
		}()
		c, invokeErr := e.registry.Invoke(execCtx, call.ToolName, call.Arguments)
		ch <- outcome{content: c, err: invokeErr}
	}()

	select {
	case o := <-ch:
		return o.content, o.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return "", gatewayerr.New(gatewayerr.Timeout, "tool dispatch cancelled", ctx.Err())
		}
		return "", gatewayerr.New(gatewayerr.Timeout, fmt.Sprintf("tool %s timed out after %s", call.ToolName, timeout), execCtx.Err())
	}
}

// Metrics returns a point-in-time snapshot of the executor's counters.
func (e *Executor) Metrics() ExecutorMetricsSnapshot {
	e.metrics.mu.Lock()
	defer e.metrics.mu.Unlock()
	return ExecutorMetricsSnapshot{
		TotalExecutions: e.metrics.TotalExecutions,
		TotalRetries:    e.metrics.TotalRetries,
		TotalFailures:   e.metrics.TotalFailures,
		TotalTimeouts:   e.metrics.TotalTimeouts,
		TotalPanics:     e.metrics.TotalPanics,
	}
}

// ExecutorMetricsSnapshot is a copy-safe view of ExecutorMetrics.
type ExecutorMetricsSnapshot struct {
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

// ResultsToMessages converts dispatch results into tool-role messages
// ready to append to conversation history, in the same request order the
// calls were issued (independent of completion order).
func ResultsToMessages(results []*ExecutionResult) []*models.Message {
	out := make([]*models.Message, 0, len(results))
	for _, r := range results {
		m := &models.Message{Role: models.RoleTool, ToolCallID: r.ToolCallID, CreatedAt: time.Now()}
		if r.Err != nil {
			m.Content = r.Err.Error()
		} else {
			m.Content = r.Content
		}
		out = append(out, m)
	}
	return out
}

// AnyErrors reports whether any dispatch result failed.
func AnyErrors(results []*ExecutionResult) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
