package driver

import "strings"

// Channels addresses an outbound message. A single topic is implicit
// addressing: with a command tree configured it is tokenized into the
// vocabulary channels it mentions. A list is used literally.
type Channels struct {
	topic string
	list  []string
}

// Topic addresses one channel, or the vocabulary channels mentioned by text
// when the driver has a command tree.
func Topic(text string) Channels {
	return Channels{topic: text}
}

// List addresses the given channels literally.
func List(channels ...string) Channels {
	if channels == nil {
		channels = []string{}
	}
	return Channels{list: channels}
}

// IsList reports whether the channels are a literal list
func (c Channels) IsList() bool {
	return c.list != nil
}

// String renders the address for logs
func (c Channels) String() string {
	if c.IsList() {
		return "[" + strings.Join(c.list, " ") + "]"
	}
	return c.topic
}
