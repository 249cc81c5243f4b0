package convstore

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stockgateway/stockgateway/internal/models"
)

func msg(role models.Role, content string) *models.Message {
	return models.NewMessage(role, content)
}

func TestPack_PreservesSystemAndFinalUser(t *testing.T) {
	history := []*models.Message{
		msg(models.RoleSystem, "you are a stock assistant"),
		msg(models.RoleUser, strings.Repeat("a", 40000)),
		msg(models.RoleAssistant, "ok"),
		msg(models.RoleUser, "what is AAPL trading at"),
	}

	out := Pack(history, 10)

	if out[0].Role != models.RoleSystem {
		t.Fatalf("expected system message first, got %v", out[0].Role)
	}
	last := out[len(out)-1]
	if last.Content != "what is AAPL trading at" {
		t.Fatalf("expected final user message preserved, got %q", last.Content)
	}
}

func TestPack_NeverOrphansToolMessage(t *testing.T) {
	call := models.ToolCallRequest{ID: "call-1", ToolName: "get_stock_quote", Arguments: json.RawMessage(`{"symbol":"AAPL"}`)}
	assistant := msg(models.RoleAssistant, "")
	assistant.SetToolCalls([]models.ToolCallRequest{call})
	toolMsg := &models.Message{Role: models.RoleTool, ToolCallID: "call-1", Content: "172.00"}

	history := []*models.Message{
		msg(models.RoleUser, "quote AAPL"),
		assistant,
		toolMsg,
		msg(models.RoleAssistant, "AAPL is at 172.00"),
		msg(models.RoleUser, "and MSFT"),
	}

	out := Pack(history, 4) // budget tight enough to force drops

	hasAssistantToolCall := false
	hasOrphanTool := false
	for i, m := range out {
		if m.Role == models.RoleTool {
			if i == 0 || out[i-1].Role != models.RoleAssistant {
				hasOrphanTool = true
			}
		}
		if m == assistant {
			hasAssistantToolCall = true
		}
	}
	if hasOrphanTool {
		t.Fatalf("tool message present without its preceding assistant turn: %+v", out)
	}
	_ = hasAssistantToolCall
}

func TestPack_KeepsWholeTurnsFromTail(t *testing.T) {
	history := []*models.Message{
		msg(models.RoleUser, "first question"),
		msg(models.RoleAssistant, "first answer"),
		msg(models.RoleUser, "second question"),
		msg(models.RoleAssistant, "second answer"),
		msg(models.RoleUser, "third question"),
	}

	out := Pack(history, 3) // enough for only the last turn or two

	if len(out) == 0 {
		t.Fatal("expected at least the final user message to survive")
	}
	if out[len(out)-1].Content != "third question" {
		t.Fatalf("expected tail order preserved, got %q", out[len(out)-1].Content)
	}
}

func TestPack_EmptyHistory(t *testing.T) {
	out := Pack(nil, DefaultMaxTokensPerTurn)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d messages", len(out))
	}
}
