package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"city.newnan/mc-console/internal/db"
	"city.newnan/mc-console/internal/model"
	"city.newnan/mc-console/internal/sse"
	"city.newnan/mc-console/internal/websocket"
	"city.newnan/mc-console/pkg/mccontrol"
)

// listCacheID 消息引用表中唯一一行的主键
const listCacheID = 1

// ErrBoardEmpty 频道中还没有状态消息
var ErrBoardEmpty = errors.New("频道中没有状态消息")

// EventPublisher SSE推送
type EventPublisher interface {
	Publish(message *sse.Message) bool
}

// RoomBroadcaster WebSocket推送
type RoomBroadcaster interface {
	Broadcast(message *websocket.BroadcastMessage)
}

// BoardService 状态面板：保存控制循环渲染的消息并推送给订阅者
type BoardService struct {
	events EventPublisher
	rooms  RoomBroadcaster
}

// NewBoardService 创建状态面板服务，events 与 rooms 可为nil
func NewBoardService(events EventPublisher, rooms RoomBroadcaster) *BoardService {
	return &BoardService{
		events: events,
		rooms:  rooms,
	}
}

// Render 编辑已有消息或创建新消息
func (s *BoardService) Render(ctx context.Context, req mccontrol.RenderRequest) (string, error) {
	tx := db.DB.WithContext(ctx)
	now := time.Now()

	if req.MessageID == "" {
		message := model.StatusMessage{
			ChannelID: req.ChannelID,
			MessageID: uuid.NewString(),
			Text:      req.Text,
		}
		if err := tx.Create(&message).Error; err != nil {
			return "", err
		}
		s.push(message.ToBoardMessage())
		return message.MessageID, nil
	}

	result := tx.Model(&model.StatusMessage{}).
		Where("channel_id = ? AND message_id = ?", req.ChannelID, req.MessageID).
		Updates(map[string]interface{}{"text": req.Text, "updated_at": now})
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", mccontrol.ErrMessageNotFound
	}

	s.push(model.BoardMessage{
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		Text:      req.Text,
		UpdatedAt: now,
	})
	return req.MessageID, nil
}

// push 推送给该频道的SSE与WebSocket订阅者
func (s *BoardService) push(message model.BoardMessage) {
	if s.events != nil {
		s.events.Publish(&sse.Message{
			Topic: message.ChannelID,
			Event: sse.EventBoard,
			ID:    message.MessageID,
			Data:  message,
		})
	}
	if s.rooms != nil {
		s.rooms.Broadcast(&websocket.BroadcastMessage{
			Room:    message.ChannelID,
			Type:    websocket.MessageTypeBoard,
			Content: message,
		})
	}
}

// Get 获取频道中最近更新的状态消息
func (s *BoardService) Get(ctx context.Context, channelID string) (*model.BoardMessage, error) {
	var message model.StatusMessage
	err := db.DB.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("updated_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardEmpty
		}
		return nil, err
	}

	board := message.ToBoardMessage()
	return &board, nil
}

// DeleteMessage 删除一条状态消息，控制循环下次更新时会重新创建
func (s *BoardService) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	result := db.DB.WithContext(ctx).Unscoped().
		Where("channel_id = ? AND message_id = ?", channelID, messageID).
		Delete(&model.StatusMessage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mccontrol.ErrMessageNotFound
	}
	return nil
}

// LoadMessageRef 读取持久化的消息引用，没有时返回nil
func (s *BoardService) LoadMessageRef(ctx context.Context) (*mccontrol.MessageRef, error) {
	var cache model.ListCache
	if err := db.DB.WithContext(ctx).First(&cache, listCacheID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if cache.MessageID == "" {
		return nil, nil
	}
	return &mccontrol.MessageRef{
		ChannelID: cache.ChannelID,
		MessageID: cache.MessageID,
	}, nil
}

// SaveMessageRef 保存消息引用，覆盖之前的值
func (s *BoardService) SaveMessageRef(ctx context.Context, ref mccontrol.MessageRef) error {
	cache := model.ListCache{
		ID:        listCacheID,
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
	}
	return db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&cache).Error
}
