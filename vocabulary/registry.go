package vocabulary

import (
	"sort"
	"sync"
)

// DefaultToken is the fallback key used in command trees when no language
// overrides it. A subtree under this key matches when nothing more specific does.
const DefaultToken = "default"

// Language describes how utterances in one natural language are tokenized.
type Language struct {
	Code         string
	Name         string
	DefaultToken string
	StopWords    map[string]struct{}
}

// IsStopWord reports whether token (already folded) is a stop word.
func (l Language) IsStopWord(token string) bool {
	_, ok := l.StopWords[token]
	return ok
}

// Global language registry
var (
	registryMu sync.RWMutex
	languages  = make(map[string]Language)
)

// Option is a functional option for configuring language registration.
type Option func(*Language)

// WithName sets the human-readable language name.
func WithName(name string) Option {
	return func(l *Language) {
		l.Name = name
	}
}

// WithStopWords adds words that are never extracted as channel tokens.
// Words are folded the same way the tokenizer folds input.
func WithStopWords(words ...string) Option {
	return func(l *Language) {
		for _, w := range words {
			for _, tok := range fold(w) {
				l.StopWords[tok] = struct{}{}
			}
		}
	}
}

// WithDefaultToken overrides the fallback command tree key.
func WithDefaultToken(token string) Option {
	return func(l *Language) {
		if token != "" {
			l.DefaultToken = token
		}
	}
}

// Register registers a language in the global registry. Registering an
// existing code replaces it, which lets hosts override the built-in sets.
//
// Example:
//
//	Register("de",
//	    WithName("German"),
//	    WithStopWords("bitte", "danke"))
func Register(code string, opts ...Option) {
	lang := Language{
		Code:         code,
		Name:         code,
		DefaultToken: DefaultToken,
		StopWords:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(&lang)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	languages[code] = lang
}

// Lookup returns the registered language for code.
func Lookup(code string) (Language, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	lang, ok := languages[code]
	return lang, ok
}

// ListLanguages returns the registered language codes in sorted order.
func ListLanguages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
