package state

import tele "gopkg.in/telebot.v4"

// Store keeps one session value per key. Do serializes callers that share a key.
type Store[S any] interface {
	Do(key int64, fn func(S))
	Clear(key int64)
	Len() int
}

// ChatKey returns the key sessions are stored under: the chat id, or the
// sender id for updates without a chat.
func ChatKey(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID
	}
	return 0
}
