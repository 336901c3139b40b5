package model

import (
	"time"

	"gorm.io/gorm"
)

// StatusMessage 状态面板上的一条消息，由控制循环创建并反复编辑
type StatusMessage struct {
	gorm.Model
	ChannelID string `gorm:"size:100;not null;index" json:"channel_id"`
	MessageID string `gorm:"size:36;not null;uniqueIndex" json:"message_id"`
	Text      string `gorm:"type:text" json:"text"`
}

// ListCache 持久化的状态消息引用，只有一行
type ListCache struct {
	ID        uint   `gorm:"primaryKey"`
	ChannelID string `gorm:"size:100"`
	MessageID string `gorm:"size:36"`
	UpdatedAt time.Time
}

// BoardMessage 推送给实时订阅者的状态更新
type BoardMessage struct {
	ChannelID string    `json:"channel_id"`
	MessageID string    `json:"message_id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToBoardMessage 将StatusMessage转换为BoardMessage
func (m *StatusMessage) ToBoardMessage() BoardMessage {
	return BoardMessage{
		ChannelID: m.ChannelID,
		MessageID: m.MessageID,
		Text:      m.Text,
		UpdatedAt: m.UpdatedAt,
	}
}
