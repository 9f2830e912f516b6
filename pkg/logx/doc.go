// Package logx configures tablebot's structured logging.
//
// Logger is a small value-type wrapper on top of zerolog:
//   - console output stays readable (short timestamp + file:line caller)
//   - file output is JSON lines
//   - an optional Telegram sink forwards WARN+ records to an operator chat,
//     rate limited so a noisy spreadsheet cannot flood the chat
package logx
