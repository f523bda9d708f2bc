// Package domain contains core concepts of the chat room.
// This file defines the Message record and its ordering rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat record. Sequence is assigned by the store and
// strictly increases in append order, so it breaks ties whenever two messages
// share the same wall-clock Timestamp. The total order over messages is
// (Timestamp, Sequence) ascending, which Sequence alone already realizes.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sequence  uint64    `json:"sequence"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
