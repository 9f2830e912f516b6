package router

import (
	"strings"
	"unicode"

	"tablebot/internal/commands"
	kit "tablebot/internal/transport"
	"tablebot/pkg/tgui"
)

// sanitizeTelegramCommand converts a command name into a Telegram-safe menu
// entry. Telegram command names are restricted to [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if r == '_' {
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
		if r == '-' || unicode.IsSpace(r) || r == '/' {
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return ""
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
		if len(out) > 32 {
			out = strings.TrimRight(out[:32], "_")
		}
	}
	return out
}

const menuDescriptionRunes = 60

// MenuCommands builds the setMyCommands list: built-ins first, then every
// table record whose name is already a valid Telegram command. Aliases and
// names that would need rewriting are left out because the menu entry would
// not dispatch to them.
func MenuCommands(t *commands.Table) []kit.BotCommand {
	out := []kit.BotCommand{
		{Command: cmdDemo, Description: "Show keyboard examples"},
		{Command: cmdReload, Description: "Reload commands from the table"},
	}
	seen := map[string]bool{cmdDemo: true, cmdReload: true}
	for _, r := range t.Records() {
		name := sanitizeTelegramCommand(r.Name)
		if name == "" || name != r.Name || seen[name] {
			continue
		}
		seen[name] = true
		desc := tgui.TruncRunes(tgui.FirstLine(r.Answer), menuDescriptionRunes)
		if desc == "" {
			desc = name
		}
		out = append(out, kit.BotCommand{Command: name, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}
