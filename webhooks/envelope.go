package webhooks

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/core"
)

// Wire shapes for the provider callback body. Only the fields the pipeline
// consumes are mapped; everything else passes through unread.
type wireEnvelope struct {
	Object string      `json:"object"`
	Entry  []wireEntry `json:"entry"`
}

type wireEntry struct {
	ID      string       `json:"id"`
	Changes []wireChange `json:"changes"`
}

type wireChange struct {
	Field string    `json:"field"`
	Value wireValue `json:"value"`
}

type wireValue struct {
	Metadata wireMetadata  `json:"metadata"`
	Contacts []wireContact `json:"contacts"`
	Messages []wireMessage `json:"messages"`
	Statuses []wireStatus  `json:"statuses"`
}

type wireMetadata struct {
	PhoneNumberID      string `json:"phone_number_id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
}

type wireContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type wireMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
}

type wireStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// ParseEnvelope validates the provider callback shape and flattens it into
// the internal envelope. Any structural deviation is a fatal structure
// error; malformed input does not improve with retrying.
func ParseEnvelope(event core.InboundEvent) (core.Envelope, error) {
	if len(event.Body) == 0 {
		return core.Envelope{}, core.NewStructureError("webhooks: event body is empty", nil)
	}

	var wire wireEnvelope
	if err := json.Unmarshal(event.Body, &wire); err != nil {
		return core.Envelope{}, core.NewStructureError("webhooks: event body is not valid JSON", map[string]any{
			"parse_error": err.Error(),
		})
	}
	if strings.TrimSpace(wire.Object) == "" {
		return core.Envelope{}, core.NewStructureError("webhooks: envelope object is missing", nil)
	}
	if len(wire.Entry) == 0 {
		return core.Envelope{}, core.NewStructureError("webhooks: envelope entry array is empty", map[string]any{
			"object": wire.Object,
		})
	}

	envelope := core.Envelope{Object: strings.TrimSpace(wire.Object)}
	names := map[string]string{}

	for _, entry := range wire.Entry {
		if len(entry.Changes) == 0 {
			return core.Envelope{}, core.NewStructureError("webhooks: envelope entry has no changes", map[string]any{
				"entry_id": entry.ID,
			})
		}
		for _, change := range entry.Changes {
			channelID := strings.TrimSpace(change.Value.Metadata.PhoneNumberID)
			if channelID == "" {
				return core.Envelope{}, core.NewStructureError("webhooks: change metadata has no channel id", map[string]any{
					"entry_id": entry.ID,
					"field":    change.Field,
				})
			}
			if envelope.ChannelID == "" {
				envelope.ChannelID = channelID
			} else if envelope.ChannelID != channelID {
				return core.Envelope{}, core.NewStructureError("webhooks: envelope spans multiple channels", map[string]any{
					"channel_id": envelope.ChannelID,
					"other":      channelID,
				})
			}

			for _, contact := range change.Value.Contacts {
				if waID := strings.TrimSpace(contact.WaID); waID != "" {
					names[waID] = strings.TrimSpace(contact.Profile.Name)
				}
			}

			for _, msg := range change.Value.Messages {
				id := strings.TrimSpace(msg.ID)
				from := strings.TrimSpace(msg.From)
				if id == "" || from == "" {
					return core.Envelope{}, core.NewStructureError("webhooks: message is missing id or sender", map[string]any{
						"entry_id": entry.ID,
					})
				}
				envelope.Messages = append(envelope.Messages, core.InboundMessage{
					ProviderMessageID: id,
					From:              from,
					SenderName:        names[from],
					Kind:              strings.TrimSpace(msg.Type),
					Body:              msg.Text.Body,
					Timestamp:         parseUnixTimestamp(msg.Timestamp, event.ReceivedAt),
				})
			}

			for _, status := range change.Value.Statuses {
				id := strings.TrimSpace(status.ID)
				value := strings.TrimSpace(status.Status)
				if id == "" || value == "" {
					return core.Envelope{}, core.NewStructureError("webhooks: status is missing id or value", map[string]any{
						"entry_id": entry.ID,
					})
				}
				envelope.Statuses = append(envelope.Statuses, core.StatusUpdate{
					ProviderMessageID: id,
					Status:            value,
					RecipientID:       strings.TrimSpace(status.RecipientID),
					Timestamp:         parseUnixTimestamp(status.Timestamp, event.ReceivedAt),
				})
			}
		}
	}

	return envelope, nil
}

// DeliveryKey derives the idempotency key for one delivery attempt. When
// the payload carries provider-assigned ids the key is built from them, so
// independent redeliveries of the same logical event collapse onto one
// run. Payloads without ids fall back to the channel plus a coarse time
// bucket, which only collapses near-simultaneous duplicates.
func DeliveryKey(envelope core.Envelope, receivedAt time.Time, bucket time.Duration) string {
	var flags []string
	if len(envelope.Messages) > 0 {
		flags = append(flags, "m")
	}
	if len(envelope.Statuses) > 0 {
		flags = append(flags, "s")
	}

	ids := make([]string, 0, len(envelope.Messages)+len(envelope.Statuses))
	for _, msg := range envelope.Messages {
		ids = append(ids, msg.ProviderMessageID)
	}
	for _, status := range envelope.Statuses {
		ids = append(ids, status.ProviderMessageID+"#"+status.Status)
	}

	parts := []string{envelope.ChannelID, strings.Join(flags, "")}
	if len(ids) > 0 {
		sort.Strings(ids)
		parts = append(parts, strings.Join(ids, ","))
	} else {
		if bucket <= 0 {
			bucket = time.Second
		}
		parts = append(parts, strconv.FormatInt(receivedAt.Truncate(bucket).Unix(), 10))
	}
	return strings.Join(parts, "::")
}

// fallbackDeliveryKey covers bodies that fail structural parsing: identical
// malformed payloads still share one in-flight run.
func fallbackDeliveryKey(body []byte) string {
	sum := sha256.Sum256(body)
	return "raw::" + hex.EncodeToString(sum[:])
}

// normalizeStatus maps a provider status string onto the lifecycle values
// the message store understands.
func normalizeStatus(status string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case core.MessageStatusSent:
		return core.MessageStatusSent, nil
	case core.MessageStatusDelivered:
		return core.MessageStatusDelivered, nil
	case core.MessageStatusRead:
		return core.MessageStatusRead, nil
	case core.MessageStatusFailed:
		return core.MessageStatusFailed, nil
	default:
		return "", core.NewBadInputError(fmt.Sprintf("unknown message status %q", status), nil)
	}
}

func parseUnixTimestamp(value string, fallback time.Time) time.Time {
	seconds, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Unix(seconds, 0).UTC()
}

// PayloadSummary produces the compact description stored on error log
// entries. It never includes message bodies.
func PayloadSummary(envelope core.Envelope) string {
	return "object=" + envelope.Object +
		" channel=" + envelope.ChannelID +
		" messages=" + strconv.Itoa(len(envelope.Messages)) +
		" statuses=" + strconv.Itoa(len(envelope.Statuses))
}
