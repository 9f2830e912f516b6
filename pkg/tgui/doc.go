// Package tgui holds small Telegram UI helpers: keyboard markup builders,
// callback data checks and text trimming for Telegram's size limits.
package tgui
