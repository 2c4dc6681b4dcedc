// Package state keeps per-chat conversation sessions in memory.
// It is domain-agnostic: the session type is chosen by the bot.
package state
