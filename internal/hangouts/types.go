package hangouts

import "time"

// ConversationKind distinguishes direct threads from group threads.
type ConversationKind int

const (
	OneToOne ConversationKind = iota
	Group
)

// MessageKind is the variant tag for a parsed message.
type MessageKind int

const (
	// MessageText carries body text only.
	MessageText MessageKind = iota
	// MessageAttachment carries at least one attachment, with or without body text.
	MessageAttachment
	// MessageMembership records a participant joining or leaving; it maps to no output record.
	MessageMembership
)

// AttachmentKind is the variant tag for an attachment reference.
type AttachmentKind int

const (
	// AttachmentPhoto is a PLUS_PHOTO image, downloadable by URL.
	AttachmentPhoto AttachmentKind = iota
	// AttachmentPlace is a maps embed; the link text already lives in the body.
	AttachmentPlace
	// AttachmentAudio is a PLUS_AUDIO_V2 voicemail recording, not converted.
	AttachmentAudio
)

// Participant is one member of a conversation.
type Participant struct {
	GaiaID      string
	PhoneNumber string // e164 or fallback name, may be empty
}

// Conversation is a thread with a fixed participant set and its messages
// in export order.
type Conversation struct {
	ID           string
	Kind         ConversationKind
	Self         Participant
	Participants []Participant // everyone except self
	Messages     []Message
}

// Message is a single normalized chat event.
type Message struct {
	EventID     string
	SenderID    string
	Timestamp   time.Time
	Kind        MessageKind
	Body        string // empty for attachment-only messages
	Attachments []Attachment
}

// Attachment is a media reference belonging to exactly one message.
type Attachment struct {
	Kind AttachmentKind
	URL  string
}
