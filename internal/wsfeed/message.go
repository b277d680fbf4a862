package wsfeed

import (
	"github.com/kpal-project/kpal/pkg/models"
)

// MessageType discriminates WebSocket messages on the attribute feed.
type MessageType string

const (
	MessageAttributeUpdated MessageType = "attribute.updated"
)

// Message is the envelope for all wsfeed messages.
type Message struct {
	Type         MessageType       `json:"type"`
	PeripheralID uint64            `json:"peripheral_id"`
	Data         AttributeUpdated  `json:"data"`
}

// AttributeUpdated is the payload for attribute.updated messages.
type AttributeUpdated struct {
	Attribute models.Attribute `json:"attribute"`
}
