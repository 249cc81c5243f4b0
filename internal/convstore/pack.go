package convstore

import "github.com/stockgateway/stockgateway/internal/models"

// DefaultMaxTokensPerTurn is the packing budget applied when a caller does
// not override it (spec's MAX_TOKENS_PER_TURN default).
const DefaultMaxTokensPerTurn = 6000

// Pack selects the subset of history to send to the model under
// maxTokens: system messages and the final user message are preserved in
// full regardless of budget; the remaining messages are walked from the
// tail backwards, admitting only whole turns (an assistant message and any
// tool messages answering its tool calls are kept or dropped together, so a
// tool message is never orphaned from the assistant turn that requested
// it) until the budget is exhausted. Relative order is preserved.
func Pack(history []*models.Message, maxTokens int) []*models.Message {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokensPerTurn
	}

	var systems []*models.Message
	var rest []*models.Message
	for _, m := range history {
		if m.Role == models.RoleSystem {
			systems = append(systems, m)
		} else {
			rest = append(rest, m)
		}
	}

	budget := maxTokens
	for _, m := range systems {
		budget -= m.TokenCount()
	}

	var lastUser *models.Message
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i].Role == models.RoleUser {
			lastUser = rest[i]
			break
		}
	}
	if lastUser != nil {
		budget -= lastUser.TokenCount()
	}

	turns := groupTurns(rest)
	lastUserTurn := -1
	if lastUser != nil {
		for i, t := range turns {
			if len(t) == 1 && t[0] == lastUser {
				lastUserTurn = i
				break
			}
		}
	}

	kept := make([]bool, len(turns))

	// Walk turns from the tail backwards, always keeping the turn holding
	// the preserved final user message (already accounted for above),
	// admitting whole turns while they fit the remaining budget.
	for i := len(turns) - 1; i >= 0; i-- {
		if i == lastUserTurn {
			kept[i] = true
			continue
		}
		cost := turnTokens(turns[i])
		if cost > budget {
			continue
		}
		budget -= cost
		kept[i] = true
	}

	out := make([]*models.Message, 0, len(history))
	out = append(out, systems...)
	for i, t := range turns {
		if !kept[i] {
			continue
		}
		out = append(out, t...)
	}
	return out
}

// turn is a contiguous, atomic run of messages: either a single user
// message, or an assistant message together with every tool message that
// answers one of its ToolCalls.
func groupTurns(msgs []*models.Message) [][]*models.Message {
	var turns [][]*models.Message
	i := 0
	for i < len(msgs) {
		m := msgs[i]
		if m.Role != models.RoleAssistant || len(m.ToolCalls) == 0 {
			turns = append(turns, []*models.Message{m})
			i++
			continue
		}
		turn := []*models.Message{m}
		want := make(map[string]bool, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			want[tc.ID] = true
		}
		j := i + 1
		for j < len(msgs) && msgs[j].Role == models.RoleTool && want[msgs[j].ToolCallID] {
			turn = append(turn, msgs[j])
			j++
		}
		turns = append(turns, turn)
		i = j
	}
	return turns
}

func turnTokens(turn []*models.Message) int {
	n := 0
	for _, m := range turn {
		n += m.TokenCount()
	}
	return n
}
