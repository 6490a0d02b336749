package sqlstore

import (
	"github.com/goliatone/go-inbox/core"
)

func (r *channelMappingRecord) toDomain() core.ChannelMapping {
	if r == nil {
		return core.ChannelMapping{}
	}
	return core.ChannelMapping{
		ChannelID:     r.ChannelID,
		StoreID:       r.StoreID,
		DisplayNumber: r.DisplayNumber,
		CreatedAt:     r.CreatedAt,
	}
}

func (r *conversationRecord) toDomain() core.Conversation {
	if r == nil {
		return core.Conversation{}
	}
	return core.Conversation{
		ID:            r.ID,
		StoreID:       r.StoreID,
		ChannelID:     r.ChannelID,
		CustomerPhone: r.CustomerPhone,
		CustomerName:  r.CustomerName,
		LastMessageAt: r.LastMessageAt,
		UnreadCount:   r.UnreadCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *messageRecord) toDomain() core.Message {
	if r == nil {
		return core.Message{}
	}
	return core.Message{
		ID:                r.ID,
		StoreID:           r.StoreID,
		ConversationID:    r.ConversationID,
		ProviderMessageID: r.ProviderMessageID,
		Direction:         r.Direction,
		Kind:              r.Kind,
		Body:              r.Body,
		Status:            r.Status,
		SentAt:            r.SentAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	return core.Order{
		ID:         r.ID,
		StoreID:    r.StoreID,
		CustomerID: r.CustomerID,
		Reference:  r.Reference,
		Status:     r.Status,
		TotalCents: r.TotalCents,
		Currency:   r.Currency,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *customerRecord) toDomain() core.Customer {
	if r == nil {
		return core.Customer{}
	}
	return core.Customer{
		ID:        r.ID,
		StoreID:   r.StoreID,
		Phone:     r.Phone,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *notificationRecord) toDomain() core.Notification {
	if r == nil {
		return core.Notification{}
	}
	return core.Notification{
		ID:        r.ID,
		StoreID:   r.StoreID,
		Kind:      r.Kind,
		Subject:   r.Subject,
		Body:      r.Body,
		ReadAt:    r.ReadAt,
		CreatedAt: r.CreatedAt,
	}
}
