package tgui

import (
	"fmt"
	"strings"
)

// CheckData reports whether data fits in a Telegram callback button.
func CheckData(data string) error {
	if len(data) > MaxCallbackDataLen {
		return fmt.Errorf("%w: %d bytes", ErrCallbackDataTooLong, len(data))
	}
	return nil
}

// CutData splits callback data of the form "<prefix>:<payload>". ok is false
// when data does not start with prefix followed by a colon.
func CutData(data, prefix string) (payload string, ok bool) {
	return strings.CutPrefix(strings.TrimSpace(data), prefix+":")
}
