// Package commands turns a spreadsheet-authored CSV table into bot commands.
//
// The pipeline is: Loader (source resolution, TTL cache, fetch) -> ReadTable
// (lenient CSV) -> []Record -> BuildTable (name and alias keys, memoized
// keyboard layouts) -> Registry (atomic swap on reload).
//
// Keyboard descriptors use a small mini-language:
//
//	inline: url:Docs|https://example.com, Ping   one row of inline buttons
//	a,b|c                                         reply keyboard, rows split on | or newlines
package commands
