package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/stockgateway/stockgateway/internal/models"
)

// Fingerprint computes the stable cache key described in spec.md §4.1: a
// SHA-256 digest of (normalized-prompt, model-id, system-prompt-digest,
// trailing-conversation-window-digest). Conversation context is folded in
// so multi-turn coherence is preserved while single-turn simple queries
// collide freely when windowDigest is empty.
func Fingerprint(prompt, modelID, systemPrompt, windowDigest string) string {
	h := sha256.New()
	h.Write([]byte(models.NormalizePrompt(prompt)))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(digest(systemPrompt)))
	h.Write([]byte{0})
	h.Write([]byte(windowDigest))
	return hex.EncodeToString(h.Sum(nil))
}

// digest returns a short SHA-256 hex digest of s, used for the
// system-prompt and trailing-window components of the fingerprint so
// large prompts don't bloat the key materials.
func digest(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// WindowDigest hashes the trailing conversation window (the last few
// messages' content) into a short digest for inclusion in Fingerprint.
func WindowDigest(messages []*models.Message, lastN int) string {
	if lastN <= 0 || len(messages) == 0 {
		return ""
	}
	start := len(messages) - lastN
	if start < 0 {
		start = 0
	}
	var sb strings.Builder
	for _, m := range messages[start:] {
		sb.WriteString(string(m.Role))
		sb.WriteByte(':')
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return digest(sb.String())
}
