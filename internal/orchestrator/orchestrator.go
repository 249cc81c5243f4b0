// Package orchestrator implements the tool-calling loop (C10): the
// centerpiece that resolves a model/tool selection, drives the bounded
// round loop against the model client, dispatches tool calls concurrently
// through the registry, and frames the result through the streaming
// multiplexer while consulting the cache/dedup layer.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stockgateway/stockgateway/internal/cache"
	"github.com/stockgateway/stockgateway/internal/convstore"
	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/modelclient"
	"github.com/stockgateway/stockgateway/internal/models"
	"github.com/stockgateway/stockgateway/internal/observability"
	"github.com/stockgateway/stockgateway/internal/selector"
	"github.com/stockgateway/stockgateway/internal/stream"
	"github.com/stockgateway/stockgateway/internal/toolregistry"
)

// Settings are the tunables spec.md §6 names for the orchestrator.
type Settings struct {
	MaxTokensPerTurn  int
	MaxToolRounds     int
	ResponseCacheTTL  time.Duration
	SimpleCacheTTL    time.Duration
	DedupTTL          time.Duration
	TurnDeadline      time.Duration
	DefaultModelAlias string
	CheapModelAlias   string
}

// DefaultSettings mirrors the defaults enumerated in spec.md §6.
func DefaultSettings() Settings {
	return Settings{
		MaxTokensPerTurn: convstore.DefaultMaxTokensPerTurn,
		MaxToolRounds:    3,
		ResponseCacheTTL: 5 * time.Minute,
		SimpleCacheTTL:   60 * time.Second,
		DedupTTL:         30 * time.Second,
		TurnDeadline:     60 * time.Second,
	}
}

// Request is one inbound chat turn.
type Request struct {
	Prompt         string
	ConversationID string
	Deployment     string // explicit model alias; empty lets the selector/default decide
	SystemPrompt   string
}

// Result is the non-streaming summary of a completed turn, returned
// alongside (or instead of) the streamed events.
type Result struct {
	Answer         string
	ConversationID string
	Model          string
	InputTokens    int
	OutputTokens   int
	Cached         bool
}

// Orchestrator wires together every collaborator named in spec.md §2's
// data-flow diagram. All fields are process-wide, read-mostly singletons
// except the per-turn working set constructed in Run.
type Orchestrator struct {
	Client       *modelclient.Client
	Registry     *toolregistry.Registry
	Executor     *toolregistry.Executor
	Selector     selector.Selector
	Heuristic    *selector.Heuristic
	Conversations *convstore.Store
	Responses    *cache.ResponseCache
	SimpleCache  *cache.SimpleQueryCache
	InFlight     *cache.InFlightGroup[Result]
	Settings     Settings

	// ToolNames lists every tool name the registry exposes, in the fixed
	// advertise order used when no selector narrows them.
	ToolNames []string
}

// New builds an Orchestrator; a zero Settings is replaced with
// DefaultSettings.
func New(client *modelclient.Client, registry *toolregistry.Registry, executor *toolregistry.Executor, sel selector.Selector, heuristic *selector.Heuristic, conv *convstore.Store, responses *cache.ResponseCache, simple *cache.SimpleQueryCache, settings Settings) *Orchestrator {
	if settings.MaxTokensPerTurn <= 0 {
		d := DefaultSettings()
		settings.MaxTokensPerTurn = d.MaxTokensPerTurn
		settings.MaxToolRounds = d.MaxToolRounds
		settings.ResponseCacheTTL = d.ResponseCacheTTL
		settings.SimpleCacheTTL = d.SimpleCacheTTL
		settings.DedupTTL = d.DedupTTL
		settings.TurnDeadline = d.TurnDeadline
	}
	names := make([]string, 0)
	for _, d := range registry.All() {
		names = append(names, d.Name)
	}
	return &Orchestrator{
		Client: client, Registry: registry, Executor: executor,
		Selector: sel, Heuristic: heuristic, Conversations: conv,
		Responses: responses, SimpleCache: simple,
		InFlight: cache.NewInFlightGroup[Result](),
		Settings: settings, ToolNames: names,
	}
}

// Run drives one user turn to completion, emitting events through mux as
// it progresses and returning the final Result. Per spec.md §4.10: cache
// lookup, model+tool selection, bounded tool-call loop, cache write,
// terminal done/error event.
func (o *Orchestrator) Run(ctx context.Context, req Request, mux *stream.Multiplexer) (Result, error) {
	turnCtx, cancel := context.WithTimeout(ctx, o.Settings.TurnDeadline)
	defer cancel()

	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	_ = mux.Send(turnCtx, stream.StartEvent())

	history := o.Conversations.Snapshot(req.ConversationID)
	windowDigest := cache.WindowDigest(history, 10)
	simple := o.Heuristic.IsSimpleQuery(req.Prompt)

	alias := req.Deployment
	if alias == "" {
		if simple && o.Settings.CheapModelAlias != "" {
			alias = o.Settings.CheapModelAlias
		} else {
			alias = o.Settings.DefaultModelAlias
		}
	}

	fingerprint := cache.Fingerprint(req.Prompt, alias, req.SystemPrompt, windowDigest)

	if simple {
		if ans, ok := o.SimpleCache.Get(fingerprint); ok {
			return o.hit(turnCtx, mux, req.ConversationID, ans)
		}
	} else {
		if ans, ok := o.Responses.Get(fingerprint); ok {
			return o.hit(turnCtx, mux, req.ConversationID, ans)
		}
	}
	observability.RecordResponseCacheResult(false)

	result, err, shared := o.InFlight.Do(turnCtx, fingerprint, func(computeCtx context.Context) (Result, error) {
		return o.compute(computeCtx, req, alias, simple, history, mux)
	})
	if shared {
		observability.RecordInFlightCoalesced()
	}
	if err != nil {
		kind := gatewayerr.KindOf(err)
		_ = mux.Send(ctx, stream.ErrorEvent(string(kind), err.Error()))
		mux.Close()
		return Result{}, err
	}

	ans := cache.Answer{Text: result.Answer, Model: result.Model, InputTokens: result.InputTokens, OutputTokens: result.OutputTokens}
	if simple {
		o.SimpleCache.Set(fingerprint, ans)
	} else {
		o.Responses.Set(fingerprint, ans)
	}

	_ = mux.Send(ctx, stream.DoneEvent(result.Model, result.InputTokens, result.OutputTokens, result.Cached))
	mux.Close()
	return result, nil
}

// hit serves a cached answer immediately, tagged cached=true, without
// entering the tool-calling loop.
func (o *Orchestrator) hit(ctx context.Context, mux *stream.Multiplexer, convID string, ans cache.Answer) (Result, error) {
	observability.RecordResponseCacheResult(true)
	_ = mux.Send(ctx, stream.ContentEvent(ans.Text))
	result := Result{Answer: ans.Text, ConversationID: convID, Model: ans.Model, InputTokens: ans.InputTokens, OutputTokens: ans.OutputTokens, Cached: true}
	_ = mux.Send(ctx, stream.DoneEvent(result.Model, result.InputTokens, result.OutputTokens, true))
	mux.Close()
	return result, nil
}

// compute runs the bounded tool-calling loop (spec.md §4.10 step 3-4) and
// is the function shared across in-flight subscribers for one
// fingerprint.
func (o *Orchestrator) compute(ctx context.Context, req Request, alias string, simple bool, history []*models.Message, mux *stream.Multiplexer) (Result, error) {
	allowed := o.Registry.Descriptors(o.ToolNames)
	if simple {
		allowed = excludeHeavy(allowed)
	}
	chosenNames := o.Selector.Select(ctx, req.Prompt, allowed)
	chosen := o.Registry.Descriptors(chosenNames)

	tools := make([]modelclient.Tool, 0, len(chosen))
	for _, d := range chosen {
		tools = append(tools, modelclient.ToolFromDescriptor(d))
	}

	userMsg := models.NewMessage(models.RoleUser, req.Prompt)
	working := append(append([]*models.Message{}, history...), userMsg)

	var finalText string
	var lastModel string
	var totalIn, totalOut int
	rounds := 0

	for ; rounds < o.Settings.MaxToolRounds; rounds++ {
		packed := convstore.Pack(working, o.Settings.MaxTokensPerTurn)
		toolsForRound := tools
		assistantMsg, toolCalls, usage, err := o.completeRound(ctx, alias, req.SystemPrompt, packed, toolsForRound, mux)
		if err != nil {
			return Result{}, err
		}
		lastModel = alias
		totalIn += usage.InputTokens
		totalOut += usage.OutputTokens

		working = append(working, assistantMsg)

		if len(toolCalls) == 0 {
			finalText = assistantMsg.Content
			break
		}

		results := o.dispatchRound(ctx, rounds, toolCalls, mux)
		toolMsgs := toolregistry.ResultsToMessages(results)
		working = append(working, toolMsgs...)
		_ = mux.Send(ctx, stream.ToolsCalledEvent(rounds, len(results)))
	}

	if finalText == "" && rounds >= o.Settings.MaxToolRounds {
		packed := convstore.Pack(working, o.Settings.MaxTokensPerTurn)
		assistantMsg, _, usage, err := o.completeRound(ctx, alias, req.SystemPrompt, packed, nil, mux)
		if err != nil {
			return Result{}, err
		}
		finalText = assistantMsg.Content
		lastModel = alias
		totalIn += usage.InputTokens
		totalOut += usage.OutputTokens
		working = append(working, assistantMsg)
		rounds++
	}

	observability.RecordToolRounds(rounds)
	o.Conversations.Append(req.ConversationID, userMsg)
	o.Conversations.Append(req.ConversationID, working[len(history)+1:]...)

	return Result{
		Answer: finalText, ConversationID: req.ConversationID, Model: lastModel,
		InputTokens: totalIn, OutputTokens: totalOut, Cached: false,
	}, nil
}

type roundUsage struct {
	InputTokens  int
	OutputTokens int
}

// completeRound drives one streaming model call to completion, forwarding
// content deltas through mux and aggregating any tool-call chunks.
func (o *Orchestrator) completeRound(ctx context.Context, alias, system string, packed []*models.Message, tools []modelclient.Tool, mux *stream.Multiplexer) (*models.Message, []models.ToolCallRequest, roundUsage, error) {
	req := &modelclient.CompletionRequest{
		Model:  alias,
		System: system,
		Tools:  tools,
	}
	for _, m := range packed {
		req.Messages = append(req.Messages, modelclient.CompletionMessage{
			Role: string(m.Role), Content: m.Content, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID,
		})
	}

	chunks, err := o.Client.Complete(ctx, req)
	if err != nil {
		return nil, nil, roundUsage{}, err
	}

	var text string
	var calls []models.ToolCallRequest
	var usage roundUsage
	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, nil, roundUsage{}, gatewayerr.New(gatewayerr.ModelError, "model stream failed", chunk.Error)
		}
		if chunk.Text != "" {
			text += chunk.Text
			_ = mux.Send(ctx, stream.ContentEvent(chunk.Text))
		}
		if chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
		if chunk.Done {
			usage.InputTokens = chunk.InputTokens
			usage.OutputTokens = chunk.OutputTokens
		}
	}

	msg := &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: text, ToolCalls: calls, CreatedAt: time.Now()}
	return msg, calls, usage, nil
}

// dispatchRound runs every tool call concurrently and emits running ->
// completed/error tool_call events in completion order, while returning
// results in request order for conversation-history append.
func (o *Orchestrator) dispatchRound(ctx context.Context, round int, calls []models.ToolCallRequest, mux *stream.Multiplexer) []*toolregistry.ExecutionResult {
	for _, c := range calls {
		_ = mux.Send(ctx, stream.ToolCallEvent(c.ToolName, stream.ToolCallRunning, ""))
	}

	type indexed struct {
		idx int
		res *toolregistry.ExecutionResult
	}
	out := make(chan indexed, len(calls))
	for i, c := range calls {
		go func(idx int, call models.ToolCallRequest) {
			out <- indexed{idx: idx, res: o.Executor.Execute(ctx, call)}
		}(i, c)
	}

	results := make([]*toolregistry.ExecutionResult, len(calls))
	for range calls {
		ix := <-out
		results[ix.idx] = ix.res
		if ix.res.Err != nil {
			_ = mux.Send(ctx, stream.ToolCallEvent(ix.res.ToolName, stream.ToolCallError, ix.res.Err.Error()))
		} else {
			_ = mux.Send(ctx, stream.ToolCallEvent(ix.res.ToolName, stream.ToolCallCompleted, ""))
		}
	}
	return results
}

func excludeHeavy(descs []models.ToolDescriptor) []models.ToolDescriptor {
	out := make([]models.ToolDescriptor, 0, len(descs))
	for _, d := range descs {
		if !d.Heavy {
			out = append(out, d)
		}
	}
	return out
}

// Clear removes a conversation from the store (the /chat/clear operation).
func (o *Orchestrator) Clear(conversationID string) error {
	if conversationID == "" {
		return gatewayerr.New(gatewayerr.InvalidRequest, "conversation_id required", nil)
	}
	o.Conversations.Clear(conversationID)
	return nil
}
