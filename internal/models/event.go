package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is one outbound controller message as stored in the journal.
type Event struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RunID      string             `bson:"run_id" json:"run_id"`
	Topic      string             `bson:"topic" json:"topic"`
	Payload    interface{}        `bson:"payload" json:"payload"`
	RecordedAt time.Time          `bson:"recorded_at" json:"recorded_at"`
}
