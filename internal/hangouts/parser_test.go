package hangouts

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exportJSON wraps conversation JSON fragments into a full export document.
func exportJSON(conversations ...string) []byte {
	out := `{"conversations":[`
	for i, c := range conversations {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return []byte(out + `]}`)
}

func oneToOneConversation(events ...string) string {
	eventList := ""
	for i, e := range events {
		if i > 0 {
			eventList += ","
		}
		eventList += e
	}
	return `{
		"conversation": {"conversation": {
			"id": {"id": "conv-1"},
			"type": "STICKY_ONE_TO_ONE",
			"self_conversation_state": {"self_read_state": {"participant_id": {"gaia_id": "self-1"}}},
			"participant_data": [
				{"id": {"gaia_id": "self-1"}, "participant_type": "GAIA", "fallback_name": "+1 555-000-1111"},
				{"id": {"gaia_id": "other-1"}, "participant_type": "OFF_NETWORK_PHONE",
				 "fallback_name": "Jo", "phone_number": {"e164": "+15551234"}}
			]
		}},
		"events": [` + eventList + `]
	}`
}

func textEvent(id, sender, timestamp, text string) string {
	return fmt.Sprintf(`{
		"sender_id": {"gaia_id": %q},
		"timestamp": %q,
		"event_id": %q,
		"event_type": "REGULAR_CHAT_MESSAGE",
		"chat_message": {"message_content": {"segment": [{"type": "TEXT", "text": %q}]}}
	}`, sender, timestamp, id, text)
}

func TestParseExport_OneToOneText(t *testing.T) {
	data := exportJSON(oneToOneConversation(
		textEvent("ev-1", "self-1", "1576525471673269", "hi"),
	))

	conversations, warnings, err := ParseExport(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, OneToOne, conv.Kind)
	assert.Equal(t, "self-1", conv.Self.GaiaID)
	assert.Equal(t, "+1 555-000-1111", conv.Self.PhoneNumber)
	require.Len(t, conv.Participants, 1)
	assert.Equal(t, "+15551234", conv.Participants[0].PhoneNumber)

	require.Len(t, conv.Messages, 1)
	msg := conv.Messages[0]
	assert.Equal(t, MessageText, msg.Kind)
	assert.Equal(t, "hi", msg.Body)
	assert.Equal(t, "self-1", msg.SenderID)
	assert.Equal(t, time.UnixMicro(1576525471673269), msg.Timestamp)
}

func TestParseExport_SegmentAssembly(t *testing.T) {
	event := `{
		"sender_id": {"gaia_id": "other-1"},
		"timestamp": "1576525471673269",
		"event_id": "ev-seg",
		"event_type": "REGULAR_CHAT_MESSAGE",
		"chat_message": {"message_content": {"segment": [
			{"type": "TEXT", "text": "check"},
			{"type": "LINE_BREAK"},
			{"type": "LINK", "text": "http://example.com"}
		]}}
	}`

	conversations, _, err := ParseExport(exportJSON(oneToOneConversation(event)))
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "check\n http://example.com ", conversations[0].Messages[0].Body)
}

func TestParseExport_PhotoAttachment(t *testing.T) {
	event := `{
		"sender_id": {"gaia_id": "other-1"},
		"timestamp": "1576525471673269",
		"event_id": "ev-photo",
		"event_type": "REGULAR_CHAT_MESSAGE",
		"chat_message": {"message_content": {
			"attachment": [{"embed_item": {"type": ["PLUS_PHOTO"], "plus_photo": {"url": "http://img.example/1"}}}]
		}}
	}`

	conversations, _, err := ParseExport(exportJSON(oneToOneConversation(event)))
	require.NoError(t, err)

	msg := conversations[0].Messages[0]
	assert.Equal(t, MessageAttachment, msg.Kind)
	assert.Empty(t, msg.Body) // attachment-only messages are valid
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, AttachmentPhoto, msg.Attachments[0].Kind)
	assert.Equal(t, "http://img.example/1", msg.Attachments[0].URL)
}

func TestParseExport_MembershipChange(t *testing.T) {
	event := `{
		"sender_id": {"gaia_id": "other-1"},
		"timestamp": "1576525471673269",
		"event_id": "ev-member",
		"event_type": "MEMBERSHIP_CHANGE",
		"membership_change": {"type": "JOIN"}
	}`

	conversations, _, err := ParseExport(exportJSON(oneToOneConversation(event)))
	require.NoError(t, err)
	assert.Equal(t, MessageMembership, conversations[0].Messages[0].Kind)
}

func TestParseExport_PlaceAttachmentDropped(t *testing.T) {
	event := `{
		"sender_id": {"gaia_id": "other-1"},
		"timestamp": "1576525471673269",
		"event_id": "ev-place",
		"event_type": "REGULAR_CHAT_MESSAGE",
		"chat_message": {"message_content": {
			"segment": [{"type": "LINK", "text": "http://maps.example"}],
			"attachment": [{"embed_item": {"type": ["PLACE_V2", "THING_V2", "THING"]}}]
		}}
	}`

	conversations, _, err := ParseExport(exportJSON(oneToOneConversation(event)))
	require.NoError(t, err)

	// The maps link is body text; the embed itself carries nothing extra.
	msg := conversations[0].Messages[0]
	assert.Equal(t, MessageText, msg.Kind)
	assert.Empty(t, msg.Attachments)
}

func TestParseExport_SkipsEmptyConversations(t *testing.T) {
	conversations, _, err := ParseExport(exportJSON(oneToOneConversation()))
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestParseExport_UnknownPhoneParticipantWarns(t *testing.T) {
	conv := `{
		"conversation": {"conversation": {
			"id": {"id": "conv-g"},
			"type": "GROUP",
			"self_conversation_state": {"self_read_state": {"participant_id": {"gaia_id": "self-1"}}},
			"participant_data": [
				{"id": {"gaia_id": "self-1"}, "participant_type": "GAIA", "fallback_name": "+15550001111"},
				{"id": {"gaia_id": "anon-1"}, "participant_type": "UNKNOWN_PHONE_NUMBER", "fallback_name": "anon"},
				{"id": {"gaia_id": "other-1"}, "participant_type": "OFF_NETWORK_PHONE", "phone_number": {"e164": "+15551234"}}
			]
		}},
		"events": [` + textEvent("ev-1", "other-1", "1576525471673269", "yo") + `]
	}`

	conversations, warnings, err := ParseExport(exportJSON(conv))
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Len(t, conversations[0].Participants, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unknown phone number")
}

func TestParseExport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("nope")},
		{"no conversations list", []byte(`{}`)},
		{"unknown conversation type", exportJSON(`{
			"conversation": {"conversation": {
				"id": {"id": "c"},
				"type": "BROADCAST",
				"self_conversation_state": {"self_read_state": {"participant_id": {"gaia_id": "s"}}},
				"participant_data": [{"id": {"gaia_id": "s"}, "participant_type": "GAIA"}]
			}},
			"events": []
		}`)},
		{"self missing from participants", exportJSON(`{
			"conversation": {"conversation": {
				"id": {"id": "c"},
				"type": "GROUP",
				"self_conversation_state": {"self_read_state": {"participant_id": {"gaia_id": "s"}}},
				"participant_data": [{"id": {"gaia_id": "x"}, "participant_type": "OFF_NETWORK_PHONE", "phone_number": {"e164": "+15551234"}}]
			}},
			"events": []
		}`)},
		{"one-to-one with extra participants", exportJSON(`{
			"conversation": {"conversation": {
				"id": {"id": "c"},
				"type": "STICKY_ONE_TO_ONE",
				"self_conversation_state": {"self_read_state": {"participant_id": {"gaia_id": "s"}}},
				"participant_data": [
					{"id": {"gaia_id": "s"}, "participant_type": "GAIA"},
					{"id": {"gaia_id": "a"}, "participant_type": "OFF_NETWORK_PHONE", "phone_number": {"e164": "+1"}},
					{"id": {"gaia_id": "b"}, "participant_type": "OFF_NETWORK_PHONE", "phone_number": {"e164": "+2"}}
				]
			}},
			"events": []
		}`)},
		{"unknown segment type", exportJSON(oneToOneConversation(`{
			"sender_id": {"gaia_id": "self-1"},
			"timestamp": "1576525471673269",
			"event_id": "ev-bad",
			"event_type": "REGULAR_CHAT_MESSAGE",
			"chat_message": {"message_content": {"segment": [{"type": "HOLOGRAM", "text": "x"}]}}
		}`))},
		{"bad timestamp", exportJSON(oneToOneConversation(`{
			"sender_id": {"gaia_id": "self-1"},
			"timestamp": "not-a-number",
			"event_id": "ev-ts",
			"event_type": "REGULAR_CHAT_MESSAGE",
			"chat_message": {"message_content": {"segment": [{"type": "TEXT", "text": "x"}]}}
		}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseExport(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedExport)
		})
	}
}
