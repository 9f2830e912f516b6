package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Layout
	}{
		{name: "empty", in: "", want: nil},
		{name: "blank", in: "   ", want: nil},
		{
			name: "inline url and action",
			in:   "inline: url:Go|https://example.com, Ping",
			want: &Layout{Kind: KindInline, Buttons: []Button{
				{Label: "Go", URL: "https://example.com"},
				{Label: "Ping", Callback: "use:Ping"},
			}},
		},
		{
			name: "inline malformed url dropped",
			in:   "inline:url:BadNoPipe",
			want: &Layout{Kind: KindInline, Buttons: []Button{}},
		},
		{
			name: "inline prefix case insensitive and marker stripped",
			in:   "INLINE: /help ,, URL: Docs | https://d.example ",
			want: &Layout{Kind: KindInline, Buttons: []Button{
				{Label: "/help", Callback: "use:help"},
				{Label: "Docs", URL: "https://d.example"},
			}},
		},
		{
			name: "inline url with empty label dropped",
			in:   "inline: url:|https://x.example, url:Label|",
			want: &Layout{Kind: KindInline, Buttons: []Button{}},
		},
		{
			name: "inline empty body",
			in:   "inline:",
			want: &Layout{Kind: KindInline, Buttons: []Button{}},
		},
		{
			name: "reply pipe rows",
			in:   "a,b|c",
			want: &Layout{Kind: KindReply, Rows: [][]string{{"a", "b"}, {"c"}}},
		},
		{
			name: "reply newline rows and blanks dropped",
			in:   "a, ,b\r\n\n , |c\nd",
			want: &Layout{Kind: KindReply, Rows: [][]string{{"a", "b"}, {"c"}, {"d"}}},
		},
		{name: "reply only separators", in: "|,|\n,", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestParseIsPure(t *testing.T) {
	for _, in := range []string{"", "inline: url:Go|https://example.com, Ping", "a,b|c", "inline:url:BadNoPipe"} {
		require.Equal(t, Parse(in), Parse(in), in)
	}
	l := Parse("a|b")
	l.Rows[0][0] = "mutated"
	require.Equal(t, "a", Parse("a|b").Rows[0][0])
}

func TestUseToken(t *testing.T) {
	require.Equal(t, "use:ping", UseToken("/ping"))
	require.Equal(t, "use:ping", UseToken(" ping "))
	require.Equal(t, "use:/x", UseToken("//x"))
}
