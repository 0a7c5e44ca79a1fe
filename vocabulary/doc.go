// Package vocabulary turns free-text utterances into commands.
//
// A Tree maps vocabulary words to nested trees or command names. A Tokenizer
// splits text into NFC-normalized, case-folded words for one registered
// Language. A Matcher hears an utterance against the tree:
//
//	tree, _ := vocabulary.LoadTree([]byte(`
//	kitchen:
//	  light:
//	    on: light.on
//	    off: light.off
//	`))
//	m, _ := vocabulary.New("en", tree)
//	m.Hear("Light ON please") // Found: true, Command: "light.on"
//
// The same tokenizer extracts channel names from text. ExtractTokens drops
// stop words and tokens shorter than a minimum length; Hear does not, so
// short command words still match.
//
// Languages "en" and "ru" are registered at init. Hosts may Register more.
package vocabulary
