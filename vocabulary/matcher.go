package vocabulary

import (
	"fmt"
	"reflect"

	"github.com/c360/semlink/errors"
)

// DefaultMaxDepth bounds how deep Hear descends into a command tree.
const DefaultMaxDepth = 16

// Match is the result of hearing an utterance against a command tree.
type Match struct {
	Found   bool     `json:"found"`
	Command string   `json:"command,omitempty"`
	Path    []string `json:"path,omitempty"`
	Tokens  []string `json:"tokens"`
	Text    string   `json:"text"`
}

// Matcher resolves free-text utterances to commands in a Tree.
// It is safe for concurrent use.
type Matcher struct {
	tree         Tree
	tokenizer    *Tokenizer
	defaultToken string
	maxDepth     int
	keyTokens    map[string][]string
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithFallbackToken overrides the language default token for this matcher.
func WithFallbackToken(token string) MatcherOption {
	return func(m *Matcher) {
		if token != "" {
			m.defaultToken = token
		}
	}
}

// WithMaxDepth bounds the descent of Hear.
func WithMaxDepth(depth int) MatcherOption {
	return func(m *Matcher) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// New builds a matcher for the registered language code over tree.
func New(lang string, tree Tree, opts ...MatcherOption) (*Matcher, error) {
	language, ok := Lookup(lang)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown language %q", errors.ErrInvalidConfig, lang),
			"Matcher", "New", "lookup language")
	}
	return NewMatcher(tree, NewTokenizer(language), opts...), nil
}

// NewMatcher creates a matcher over tree using tokenizer.
func NewMatcher(tree Tree, tokenizer *Tokenizer, opts ...MatcherOption) *Matcher {
	if tree == nil {
		tree = Tree{}
	}
	m := &Matcher{
		tree:         tree,
		tokenizer:    tokenizer,
		defaultToken: tokenizer.Language().DefaultToken,
		maxDepth:     DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.keyTokens = make(map[string][]string)
	m.indexKeys(m.tree, make(map[uintptr]struct{}))
	return m
}

// indexKeys tokenizes every key of the tree once. Each node is visited once
// even when the tree contains itself.
func (m *Matcher) indexKeys(tree Tree, seen map[uintptr]struct{}) {
	id := nodeID(tree)
	if _, ok := seen[id]; ok {
		return
	}
	seen[id] = struct{}{}

	for key, value := range tree {
		if _, ok := m.keyTokens[key]; !ok {
			m.keyTokens[key] = m.tokenizer.Tokens(key)
		}
		if sub, ok := AsTree(value); ok {
			m.indexKeys(sub, seen)
		}
	}
}

// nodeID identifies a tree node by its map header
func nodeID(tree Tree) uintptr {
	return reflect.ValueOf(tree).Pointer()
}

// Tree returns the command tree.
func (m *Matcher) Tree() Tree {
	return m.tree
}

// DefaultToken returns the fallback key excluded from derived topics.
func (m *Matcher) DefaultToken() string {
	return m.defaultToken
}

// ExtractTokens delegates to the tokenizer.
func (m *Matcher) ExtractTokens(text string, minLength int) []string {
	return m.tokenizer.ExtractTokens(text, minLength)
}

// Hear resolves text to the best command path in the tree.
//
// A path qualifies when its leaf key is mentioned in text, or when the leaf
// is the default token and some key above it is mentioned. Among qualifying
// paths the one mentioning the most keys wins; a mentioned leaf beats a
// default leaf, and remaining ties go to the first path in sorted key order.
// Tokens of any length count, so short words like "on" match.
func (m *Matcher) Hear(text string) Match {
	tokens := m.tokenizer.Tokens(text)
	match := Match{Text: text, Tokens: tokens}

	mentioned := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		mentioned[tok] = struct{}{}
	}

	var best candidate
	m.walk(m.tree, nil, 0, 0, mentioned, make(map[uintptr]struct{}), &best)
	if best.path == nil {
		return match
	}

	match.Found = true
	match.Command = best.command
	match.Path = best.path
	return match
}

type candidate struct {
	path          []string
	command       string
	score         int
	leafMentioned bool
}

func (c candidate) beats(other candidate) bool {
	if other.path == nil {
		return true
	}
	if c.score != other.score {
		return c.score > other.score
	}
	return c.leafMentioned && !other.leafMentioned
}

// walk scores every path below tree. A node already on the current path is
// not entered again, so a tree that contains itself is walked once per node.
func (m *Matcher) walk(tree Tree, path []string, level, score int,
	mentioned map[string]struct{}, onPath map[uintptr]struct{}, best *candidate) {
	if level >= m.maxDepth {
		return
	}
	id := nodeID(tree)
	if _, ok := onPath[id]; ok {
		return
	}
	onPath[id] = struct{}{}
	defer delete(onPath, id)

	for _, key := range tree.SortedKeys() {
		here := append(append([]string(nil), path...), key)
		keyMentioned := m.mentions(key, mentioned)
		hereScore := score
		if keyMentioned {
			hereScore++
		}

		if sub, ok := AsTree(tree[key]); ok {
			m.walk(sub, here, level+1, hereScore, mentioned, onPath, best)
			continue
		}

		command, _ := tree[key].(string)
		isDefault := key == m.defaultToken
		if !keyMentioned && !(isDefault && hereScore > 0) {
			continue
		}
		c := candidate{path: here, command: command, score: hereScore, leafMentioned: keyMentioned}
		if c.beats(*best) {
			*best = c
		}
	}
}

// mentions reports whether every token of key appears in the utterance.
func (m *Matcher) mentions(key string, mentioned map[string]struct{}) bool {
	keyTokens, ok := m.keyTokens[key]
	if !ok {
		keyTokens = m.tokenizer.Tokens(key)
	}
	if len(keyTokens) == 0 {
		return false
	}
	for _, tok := range keyTokens {
		if _, ok := mentioned[tok]; !ok {
			return false
		}
	}
	return true
}
