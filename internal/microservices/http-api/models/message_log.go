package models

import "time"

// MessageLog is one inbound MESSAGE payload recorded by the on_message subscriber.
type MessageLog struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName string    `gorm:"index" json:"display_name"`
	Payload     string    `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt   time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (MessageLog) TableName() string {
	return "message_logs"
}
