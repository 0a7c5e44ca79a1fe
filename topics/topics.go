// Package topics derives the set of channels a robot listens on.
package topics

import (
	"sort"
	"strings"

	"github.com/c360/semlink/vocabulary"
)

// Tokenizer extracts channel-name tokens from free text. Tokens shorter than
// minLength are dropped by the tokenizer itself.
type Tokenizer interface {
	ExtractTokens(text string, minLength int) []string
}

// Listen is the explicit part of the listen configuration: either a literal
// list of channels or free text to tokenize. The zero value listens on nothing.
type Listen struct {
	Channels []string
	Text     string
}

// ListenChannels builds a literal channel list.
func ListenChannels(channels ...string) Listen {
	return Listen{Channels: channels}
}

// ListenText builds a free-text listen setting.
func ListenText(text string) Listen {
	return Listen{Text: text}
}

// IsZero reports whether no explicit listen configuration was given.
func (l Listen) IsZero() bool {
	return l.Channels == nil && l.Text == ""
}

// Options controls topic derivation.
type Options struct {
	Listen          Listen
	TreeListenDepth int
	MinTokenLength  int
	DefaultToken    string
}

// Derive computes the listen set: the explicit list as-is (or tokens of the
// free text), united with tokens extracted from tree keys down to
// TreeListenDepth levels, minus DefaultToken and empty names. The result is
// sorted and duplicate free.
func Derive(opts Options, tree vocabulary.Tree, tok Tokenizer) []string {
	set := make(map[string]struct{})

	switch {
	case opts.Listen.Channels != nil:
		for _, ch := range opts.Listen.Channels {
			set[ch] = struct{}{}
		}
	case opts.Listen.Text != "":
		for _, ch := range tok.ExtractTokens(opts.Listen.Text, opts.MinTokenLength) {
			set[ch] = struct{}{}
		}
	}

	if opts.TreeListenDepth > 0 && len(tree) > 0 {
		keys := strings.Join(tree.Keys(opts.TreeListenDepth), " ")
		for _, ch := range tok.ExtractTokens(keys, opts.MinTokenLength) {
			set[ch] = struct{}{}
		}
	}

	if opts.DefaultToken != "" {
		delete(set, opts.DefaultToken)
	}
	delete(set, "")

	result := make([]string, 0, len(set))
	for ch := range set {
		result = append(result, ch)
	}
	sort.Strings(result)
	return result
}
