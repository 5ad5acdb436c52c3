// Package command interprets text received from the client.
package command

import (
	"strings"

	"dirmon/internal/reactor"
)

// Token requests termination when it appears anywhere in a read buffer.
const Token = "QUIT"

// Interpret maps client text to an event. Matching is case-sensitive and
// looks at the whole buffer, so "please QUIT now" still terminates.
func Interpret(text string) (reactor.Event, bool) {
	if strings.Contains(text, Token) {
		return reactor.Quit(), true
	}
	return reactor.Event{}, false
}
