package index

import (
	"sync"

	"github.com/stockgateway/stockgateway/internal/rag/parser/markdown"
	"github.com/stockgateway/stockgateway/internal/rag/parser/text"
)

var registerParsersOnce sync.Once

func ensureDefaultParsers() {
	registerParsersOnce.Do(func() {
		markdown.Register()
		text.Register()
	})
}
