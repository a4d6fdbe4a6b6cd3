package mq

import (
	"time"
)

// SourceName marks messages published by this service so echoes can be
// ignored.
const SourceName = "RTB"

type Message struct {
	Data   interface{} `json:"data"`
	Source string      `json:"source"`
}

type MessageOptions struct {
	Qos      byte          `json:"qos"`
	Retained bool          `json:"retained"`
	Timeout  time.Duration `json:"timeout"`
	Source   string        `json:"source"`
}

func DefaultMessageOptions() *MessageOptions {
	return &MessageOptions{
		Qos:      1,
		Retained: false,
		Timeout:  5 * time.Second,
		Source:   SourceName,
	}
}
