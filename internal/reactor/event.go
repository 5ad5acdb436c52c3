package reactor

import (
	"fmt"
	"strconv"
)

// Kind identifies the category of an Event.
type Kind int

const (
	KindAccept Kind = iota + 1
	KindRead
	KindWrite
	KindDirmon
	KindQuit
)

func (kind Kind) String() string {
	switch kind {
	case KindAccept:
		return "accept"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindDirmon:
		return "dirmon"
	case KindQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Event is a single unit of work for the reactor.
//
// Buffer carries the pending payload of a Read or Write and the formatted
// message of a Dirmon event. It is empty for Accept and Quit.
type Event struct {
	Kind   Kind
	Buffer string
}

func Accept() Event {
	return Event{Kind: KindAccept}
}

func Read(buffer string) Event {
	return Event{Kind: KindRead, Buffer: buffer}
}

func Write(buffer string) Event {
	return Event{Kind: KindWrite, Buffer: buffer}
}

func Dirmon(message string) Event {
	return Event{Kind: KindDirmon, Buffer: message}
}

func Quit() Event {
	return Event{Kind: KindQuit}
}

func (e Event) String() string {
	switch e.Kind {
	case KindAccept, KindQuit:
		return e.Kind.String()
	case KindRead, KindWrite, KindDirmon:
		return fmt.Sprintf("%s(%s)", e.Kind, strconv.Quote(e.Buffer))
	default:
		return "unknown(" + strconv.Itoa(int(e.Kind)) + ")"
	}
}
