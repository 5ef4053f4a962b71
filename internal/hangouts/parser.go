package hangouts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrMalformedExport reports a Takeout export whose expected structure is
// missing. The whole run aborts; a partial conversion of personal history
// would be worse than a clear failure.
var ErrMalformedExport = errors.New("malformed hangouts export")

// Raw shapes of Takeout/Hangouts/Hangouts.json. Only the fields the
// converter needs are declared; everything else is ignored by encoding/json.
type rawExport struct {
	Conversations []rawConversation `json:"conversations"`
}

type rawConversation struct {
	Conversation struct {
		Conversation rawConversationDetail `json:"conversation"`
	} `json:"conversation"`
	Events []rawEvent `json:"events"`
}

type rawConversationDetail struct {
	ID struct {
		ID string `json:"id"`
	} `json:"id"`
	Type                  string `json:"type"`
	SelfConversationState struct {
		SelfReadState struct {
			ParticipantID struct {
				GaiaID string `json:"gaia_id"`
			} `json:"participant_id"`
		} `json:"self_read_state"`
	} `json:"self_conversation_state"`
	ParticipantData []rawParticipant `json:"participant_data"`
}

type rawParticipant struct {
	ID struct {
		GaiaID string `json:"gaia_id"`
	} `json:"id"`
	ParticipantType string `json:"participant_type"`
	FallbackName    string `json:"fallback_name"`
	PhoneNumber     *struct {
		E164 string `json:"e164"`
	} `json:"phone_number"`
}

type rawEvent struct {
	SenderID struct {
		GaiaID string `json:"gaia_id"`
	} `json:"sender_id"`
	Timestamp   string          `json:"timestamp"`
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	ChatMessage *rawChatMessage `json:"chat_message"`
	Membership  json.RawMessage `json:"membership_change"`
}

type rawChatMessage struct {
	MessageContent struct {
		Segment    []rawSegment    `json:"segment"`
		Attachment []rawAttachment `json:"attachment"`
	} `json:"message_content"`
}

type rawSegment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rawAttachment struct {
	EmbedItem struct {
		Type      []string `json:"type"`
		PlusPhoto *struct {
			URL string `json:"url"`
		} `json:"plus_photo"`
	} `json:"embed_item"`
}

// ParseExport decodes Hangouts.json content into normalized conversations.
// Conversations that end up with zero messages are skipped. The returned
// warnings describe non-fatal oddities such as skipped participants.
func ParseExport(data []byte) ([]Conversation, []string, error) {
	var export rawExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, nil, fmt.Errorf("%w: decode json: %v", ErrMalformedExport, err)
	}
	if export.Conversations == nil {
		return nil, nil, fmt.Errorf("%w: no conversations list", ErrMalformedExport)
	}

	var conversations []Conversation
	var warnings []string

	for _, rc := range export.Conversations {
		conv, ws, err := parseConversation(rc)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, ws...)
		if len(conv.Messages) == 0 {
			continue
		}
		conversations = append(conversations, conv)
	}

	return conversations, warnings, nil
}

func parseConversation(rc rawConversation) (Conversation, []string, error) {
	detail := rc.Conversation.Conversation

	conv := Conversation{ID: detail.ID.ID}
	if conv.ID == "" {
		return Conversation{}, nil, fmt.Errorf("%w: conversation missing id", ErrMalformedExport)
	}

	switch detail.Type {
	case "STICKY_ONE_TO_ONE":
		conv.Kind = OneToOne
	case "GROUP":
		conv.Kind = Group
	default:
		return Conversation{}, nil, fmt.Errorf("%w: conversation %s: unknown type %q",
			ErrMalformedExport, conv.ID, detail.Type)
	}

	selfID := detail.SelfConversationState.SelfReadState.ParticipantID.GaiaID
	if selfID == "" {
		return Conversation{}, nil, fmt.Errorf("%w: conversation %s: missing self participant id",
			ErrMalformedExport, conv.ID)
	}

	var warnings []string
	for _, rp := range detail.ParticipantData {
		if rp.ID.GaiaID == selfID {
			conv.Self = Participant{GaiaID: rp.ID.GaiaID, PhoneNumber: rp.FallbackName}
			continue
		}

		p := Participant{GaiaID: rp.ID.GaiaID}
		switch rp.ParticipantType {
		case "GAIA":
			if rp.PhoneNumber != nil {
				p.PhoneNumber = rp.PhoneNumber.E164
			}
		case "OFF_NETWORK_PHONE":
			if rp.PhoneNumber == nil {
				return Conversation{}, nil, fmt.Errorf("%w: conversation %s: phone participant without number",
					ErrMalformedExport, conv.ID)
			}
			p.PhoneNumber = rp.PhoneNumber.E164
		case "MALFORMED_PHONE_NUMBER":
			// Short codes (bank alerts etc.) land here; the fallback name
			// holds the short number.
			p.PhoneNumber = rp.FallbackName
		case "UNKNOWN_PHONE_NUMBER":
			warnings = append(warnings, fmt.Sprintf(
				"conversation %s: skipping participant with unknown phone number", conv.ID))
			continue
		default:
			return Conversation{}, nil, fmt.Errorf("%w: conversation %s: unknown participant type %q",
				ErrMalformedExport, conv.ID, rp.ParticipantType)
		}
		conv.Participants = append(conv.Participants, p)
	}

	if conv.Self.GaiaID == "" {
		return Conversation{}, nil, fmt.Errorf("%w: conversation %s: self participant not in participant data",
			ErrMalformedExport, conv.ID)
	}
	if conv.Kind == OneToOne && len(conv.Participants) != 1 {
		return Conversation{}, nil, fmt.Errorf("%w: conversation %s: one-to-one with %d other participants",
			ErrMalformedExport, conv.ID, len(conv.Participants))
	}

	for _, re := range rc.Events {
		msg, err := parseEvent(conv.ID, re)
		if err != nil {
			return Conversation{}, nil, err
		}
		conv.Messages = append(conv.Messages, msg)
	}

	return conv, warnings, nil
}

func parseEvent(convID string, re rawEvent) (Message, error) {
	msg := Message{
		EventID:  re.EventID,
		SenderID: re.SenderID.GaiaID,
	}
	if msg.EventID == "" || msg.SenderID == "" {
		return Message{}, fmt.Errorf("%w: conversation %s: event missing id or sender", ErrMalformedExport, convID)
	}

	// Timestamps are epoch microseconds encoded as strings.
	micros, err := strconv.ParseInt(re.Timestamp, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: event %s: bad timestamp %q", ErrMalformedExport, msg.EventID, re.Timestamp)
	}
	msg.Timestamp = time.UnixMicro(micros)

	if len(re.Membership) > 0 || re.EventType == "MEMBERSHIP_CHANGE" {
		msg.Kind = MessageMembership
		return msg, nil
	}

	if re.ChatMessage == nil {
		return Message{}, fmt.Errorf("%w: event %s: no chat message content", ErrMalformedExport, msg.EventID)
	}
	content := re.ChatMessage.MessageContent

	if len(content.Segment) > 0 {
		body, err := assembleBody(msg.EventID, content.Segment)
		if err != nil {
			return Message{}, err
		}
		msg.Body = body
	}

	for _, ra := range content.Attachment {
		att, err := parseAttachment(msg.EventID, re.EventType, ra)
		if err != nil {
			return Message{}, err
		}
		if att.Kind == AttachmentPlace {
			// The maps link is already part of the body text; nothing to carry.
			continue
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	if len(msg.Attachments) > 0 {
		msg.Kind = MessageAttachment
	} else {
		msg.Kind = MessageText
	}
	return msg, nil
}

// assembleBody flattens message segments into one body string. Links are
// stored as separate segments in the export but are really just part of
// the text, so they are folded back in with surrounding spaces.
func assembleBody(eventID string, segments []rawSegment) (string, error) {
	var body string
	for _, seg := range segments {
		switch seg.Type {
		case "TEXT":
			body += seg.Text
		case "LINE_BREAK":
			body += "\n"
		case "LINK":
			body += " " + seg.Text + " "
		default:
			return "", fmt.Errorf("%w: event %s: unknown segment type %q", ErrMalformedExport, eventID, seg.Type)
		}
	}
	return body, nil
}

func parseAttachment(eventID, eventType string, ra rawAttachment) (Attachment, error) {
	kind := embedKind(ra.EmbedItem.Type)
	switch kind {
	case "PLUS_PHOTO":
		if ra.EmbedItem.PlusPhoto == nil || ra.EmbedItem.PlusPhoto.URL == "" {
			return Attachment{}, fmt.Errorf("%w: event %s: photo attachment without url", ErrMalformedExport, eventID)
		}
		return Attachment{Kind: AttachmentPhoto, URL: ra.EmbedItem.PlusPhoto.URL}, nil
	case "PLACE_V2":
		return Attachment{Kind: AttachmentPlace}, nil
	case "PLUS_AUDIO_V2":
		// Only voicemail events carry audio embeds in known exports.
		if eventType != "VOICEMAIL" {
			return Attachment{}, fmt.Errorf("%w: event %s: audio embed on %s event", ErrMalformedExport, eventID, eventType)
		}
		return Attachment{Kind: AttachmentAudio}, nil
	default:
		return Attachment{}, fmt.Errorf("%w: event %s: unknown embed item type %v", ErrMalformedExport, eventID, ra.EmbedItem.Type)
	}
}

// embedKind reduces the embed item type list to its discriminating entry.
func embedKind(types []string) string {
	for _, t := range types {
		switch t {
		case "PLUS_PHOTO", "PLUS_AUDIO_V2", "PLACE_V2":
			return t
		}
	}
	if len(types) > 0 {
		return types[0]
	}
	return ""
}
