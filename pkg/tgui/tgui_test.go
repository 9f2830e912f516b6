package tgui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineRow(t *testing.T) {
	rm := InlineRow(Btn("Ping", "use:ping"), URLBtn("Docs", "https://example.com"))
	require.Len(t, rm.InlineKeyboard, 1)
	row := rm.InlineKeyboard[0]
	require.Len(t, row, 2)
	require.Equal(t, "use:ping", row[0].Data)
	require.Equal(t, "https://example.com", row[1].URL)
}

func TestReply(t *testing.T) {
	rm := Reply([][]string{{"a", "b"}, {"c"}})
	require.True(t, rm.ResizeKeyboard)
	require.True(t, rm.OneTimeKeyboard)
	require.Len(t, rm.ReplyKeyboard, 2)
	require.Equal(t, "b", rm.ReplyKeyboard[0][1].Text)
	require.Equal(t, "c", rm.ReplyKeyboard[1][0].Text)
}

func TestCallbackData(t *testing.T) {
	require.NoError(t, CheckData("use:"+strings.Repeat("x", 60)))
	require.ErrorIs(t, CheckData("use:"+strings.Repeat("x", 61)), ErrCallbackDataTooLong)

	p, ok := CutData(" use:ping ", "use")
	require.True(t, ok)
	require.Equal(t, "ping", p)
	_, ok = CutData("other:ping", "use")
	require.False(t, ok)
}

func TestTruncRunes(t *testing.T) {
	require.Equal(t, "héll…", TruncRunes("héllo world", 4))
	require.Equal(t, "hi", TruncRunes("hi", 4))
	require.Equal(t, "", TruncRunes("hi", 0))
	require.Equal(t, "second", FirstLine("\n  \n second \nthird"))
}
