package commands

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxDescriptorLen = 4000
	maxLabelLen      = 64
	maxReplyButtons  = 100
	// Telegram rejects callback_data longer than this many bytes.
	maxCallbackData = 64
	labelPreviewLen = 80
)

// Warning rules.
const (
	RuleEmpty           = "empty_keyboard"
	RuleTooLarge        = "too_large"
	RuleMalformedURL    = "malformed_url"
	RuleInvalidURL      = "invalid_url"
	RuleLabelTooLong    = "label_too_long"
	RuleCallbackTooLong = "callback_too_long"
	RuleNoRows          = "no_rows"
	RuleTooManyButtons  = "too_many_buttons"
)

// Warning is a non-fatal problem found in a keyboard descriptor.
type Warning struct {
	Rule    string
	Message string
}

func (w Warning) String() string { return w.Rule + ": " + w.Message }

// Validate reports suspicious content in descriptor. It never rejects a
// record; the caller decides how to surface the warnings.
func Validate(descriptor, command string) []Warning {
	var out []Warning
	add := func(rule, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		out = append(out, Warning{Rule: rule, Message: fmt.Sprintf("%s for /%s", msg, command)})
	}

	raw := strings.TrimSpace(descriptor)
	if raw == "" {
		add(RuleEmpty, "empty keyboard")
		return out
	}
	if utf8.RuneCountInString(raw) > maxDescriptorLen {
		add(RuleTooLarge, "keyboard too large")
		return out
	}

	if hasPrefixFold(raw, inlinePrefix) {
		for _, tok := range strings.Split(raw[len(inlinePrefix):], ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			if hasPrefixFold(tok, urlPrefix) {
				_, target, ok := strings.Cut(tok[len(urlPrefix):], "|")
				target = strings.TrimSpace(target)
				if !ok {
					add(RuleMalformedURL, "malformed url entry %q", tok)
				} else if target != "" && !hasPrefixFold(target, "http://") && !hasPrefixFold(target, "https://") {
					add(RuleInvalidURL, "url may be invalid %q", target)
				}
			} else if n := len(UseToken(tok)); n > maxCallbackData {
				add(RuleCallbackTooLong, "callback data too long (%d bytes) %q", n, preview(tok))
			}
			if utf8.RuneCountInString(tok) > maxLabelLen {
				add(RuleLabelTooLong, "button label too long %q", preview(tok))
			}
		}
		return out
	}

	rows := splitReplyRows(raw)
	if len(rows) == 0 {
		add(RuleNoRows, "no rows parsed")
		return out
	}
	total := 0
	for _, row := range rows {
		total += len(row)
		for _, label := range row {
			if utf8.RuneCountInString(label) > maxLabelLen {
				add(RuleLabelTooLong, "button label too long %q", preview(label))
			}
		}
	}
	if total > maxReplyButtons {
		add(RuleTooManyButtons, "very large keyboard (%d buttons)", total)
	}
	return out
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= labelPreviewLen {
		return s
	}
	return string(r[:labelPreviewLen]) + "..."
}
