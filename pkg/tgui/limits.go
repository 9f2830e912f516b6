package tgui

import "errors"

const (
	// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
	MaxCallbackDataLen = 64
	// MaxCallbackAnswerLen is the longest callback notification Telegram shows.
	MaxCallbackAnswerLen = 200
	// MaxMenuDescriptionLen bounds a setMyCommands description.
	MaxMenuDescriptionLen = 256
)

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")
