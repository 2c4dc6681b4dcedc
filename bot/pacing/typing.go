// Package pacing computes the artificial "typing" latency shown before a bot reply.
package pacing

import (
	"time"
	"unicode/utf8"

	coreconfig "github.com/m3rciful/calcbot/core/config"
)

const (
	DefaultBase    = 1200 * time.Millisecond
	DefaultPerChar = 20 * time.Millisecond
	DefaultMax     = 2200 * time.Millisecond
)

// Typing grows the delay linearly with the reply length up to Max.
type Typing struct {
	Base    time.Duration
	PerChar time.Duration
	Max     time.Duration
}

// Default is 1.2s plus 20ms per character, capped at 2.2s.
func Default() Typing {
	return Typing{Base: DefaultBase, PerChar: DefaultPerChar, Max: DefaultMax}
}

// FromConfig builds Typing from normalized configuration.
func FromConfig(cfg coreconfig.TypingConfig) Typing {
	if cfg.Disabled {
		return Typing{}
	}
	return Typing{
		Base:    time.Duration(cfg.BaseMS) * time.Millisecond,
		PerChar: time.Duration(cfg.PerCharMS) * time.Millisecond,
		Max:     time.Duration(cfg.MaxMS) * time.Millisecond,
	}
}

// Delay returns how long to show the typing indicator before text is delivered.
func (t Typing) Delay(text string) time.Duration {
	d := t.Base + t.PerChar*time.Duration(utf8.RuneCountInString(text))
	if t.Max > 0 && d > t.Max {
		d = t.Max
	}
	if d < 0 {
		return 0
	}
	return d
}
