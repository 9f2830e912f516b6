package commands

import "strings"

// CommandMarker is the prefix users type before a command.
const CommandMarker = "/"

// Record is one command row. Aliases resolve to the same Record.
type Record struct {
	Name     string   `json:"name"`
	Answer   string   `json:"answer"`
	Keyboard string   `json:"keyboard"`
	Aliases  []string `json:"aliases"`
}

// NormalizeName trims s and strips a single leading command marker.
func NormalizeName(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), CommandMarker)
}

// ReplyText is the message body sent for r. Telegram rejects empty
// messages, so an empty answer becomes a single space.
func (r *Record) ReplyText() string {
	if r == nil || r.Answer == "" {
		return " "
	}
	return r.Answer
}

// splitAliases splits a comma-separated aliases cell, dropping empties.
func splitAliases(cell string) []string {
	var out []string
	for _, a := range strings.Split(cell, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
