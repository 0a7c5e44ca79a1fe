package driver

import (
	"context"

	"github.com/c360/semlink/vocabulary"
)

// Transport is the pub/sub connection the driver runs on. The caller
// connects it; the driver subscribes, publishes and closes it on Halt.
type Transport interface {
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, topic string, data []byte)) error
	Publish(ctx context.Context, topic string, data []byte) error
	Close(ctx context.Context) error
}

// Vocabulary tokenizes text and matches utterances against a command tree
type Vocabulary interface {
	ExtractTokens(text string, minLength int) []string
	Hear(text string) vocabulary.Match
	DefaultToken() string
	Tree() vocabulary.Tree
}
