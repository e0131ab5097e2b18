package domain

import "errors"

const MaxChannelIDLen = 64

var (
	ErrChannelIDEmpty   = errors.New("channel id empty")
	ErrChannelIDTooLong = errors.New("channel id too long")
)

// ChannelID names one shared call, usually the collaboration group id.
type ChannelID string

func (c ChannelID) Validate() error {
	if len(c) == 0 {
		return ErrChannelIDEmpty
	}
	if len(c) > MaxChannelIDLen {
		return ErrChannelIDTooLong
	}
	return nil
}

type Room struct {
	ID ChannelID
}
