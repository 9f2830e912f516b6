package commands

import (
	"regexp"
	"strings"
)

// Kind selects the keyboard variant a descriptor produced.
type Kind int

const (
	KindInline Kind = iota + 1
	KindReply
)

func (k Kind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindReply:
		return "reply"
	default:
		return "unknown"
	}
}

const (
	inlinePrefix = "inline:"
	urlPrefix    = "url:"

	// UsePrefix starts the callback token of inline action buttons.
	UsePrefix = "use:"
)

// Button is one inline button. Exactly one of URL and Callback is set.
type Button struct {
	Label    string
	URL      string
	Callback string
}

func (b Button) IsURL() bool { return b.URL != "" }

// Layout is a parsed keyboard descriptor. Inline layouts use Buttons,
// reply layouts use Rows.
type Layout struct {
	Kind    Kind
	Buttons []Button
	Rows    [][]string
}

var rowSep = regexp.MustCompile(`\r?\n|\|`)

// UseToken returns the callback token that runs the named command.
func UseToken(name string) string {
	return UsePrefix + NormalizeName(name)
}

// Parse converts a descriptor into a Layout. It returns nil when the
// descriptor describes no keyboard. Malformed parts are dropped silently;
// see Validate for diagnostics.
func Parse(descriptor string) *Layout {
	raw := strings.TrimSpace(descriptor)
	if raw == "" {
		return nil
	}
	if hasPrefixFold(raw, inlinePrefix) {
		return parseInline(raw[len(inlinePrefix):])
	}
	return parseReply(raw)
}

func parseInline(body string) *Layout {
	l := &Layout{Kind: KindInline, Buttons: []Button{}}
	for _, tok := range strings.Split(body, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if hasPrefixFold(tok, urlPrefix) {
			label, target, ok := strings.Cut(tok[len(urlPrefix):], "|")
			label, target = strings.TrimSpace(label), strings.TrimSpace(target)
			if !ok || label == "" || target == "" {
				continue
			}
			l.Buttons = append(l.Buttons, Button{Label: label, URL: target})
			continue
		}
		l.Buttons = append(l.Buttons, Button{Label: tok, Callback: UseToken(tok)})
	}
	return l
}

func parseReply(raw string) *Layout {
	rows := splitReplyRows(raw)
	if len(rows) == 0 {
		return nil
	}
	return &Layout{Kind: KindReply, Rows: rows}
}

func splitReplyRows(raw string) [][]string {
	var rows [][]string
	for _, line := range rowSep.Split(raw, -1) {
		var row []string
		for _, c := range strings.Split(line, ",") {
			if c = strings.TrimSpace(c); c != "" {
				row = append(row, c)
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
