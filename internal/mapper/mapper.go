// Package mapper converts normalized Hangouts messages into SMS Backup &
// Restore records. A message becomes an SMS iff its conversation is
// one-to-one and it carries no attachment; everything else becomes an MMS.
package mapper

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earthastronaut/hangouts-sms-export/internal/hangouts"
	"github.com/earthastronaut/hangouts-sms-export/internal/media"
	"github.com/earthastronaut/hangouts-sms-export/internal/smsbackup"
)

// smil scaffolds the consuming app ships with its own messages. It did not
// seem to care which variant appears, so two generic ones cover text and
// image messages.
const (
	smilText = `<smil xmlns="http://www.w3.org/2001/SMIL20/Language"><head><layout/></head><body></body></smil>`
	smilImg  = `<smil xmlns="http://www.w3.org/2001/SMIL20/Language"><head><layout/></head><body><par dur="8000ms"><img src="image"/></par></body></smil>`
)

// defaultDateSent fills the date_sent attribute; the export does not
// record it, and the restore app only needs some fixed past instant.
var defaultDateSent = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Config carries the explicit knobs so mapping stays a pure function of
// its inputs.
type Config struct {
	// ServiceCenter fills the service_center attribute on SMS records.
	ServiceCenter string
	// Contacts overrides participant identifiers (gaia id or raw number)
	// with a phone number.
	Contacts map[string]string
}

type Mapper struct {
	cfg Config
}

func New(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// MapMessage converts one message in its conversation context. resolved
// must align with msg.Attachments; entries for non-photo attachments are
// ignored. A nil record with warnings means the message produced no output
// (membership events, voicemail audio, empty messages).
func (m *Mapper) MapMessage(conv hangouts.Conversation, msg hangouts.Message, resolved []media.Content) (smsbackup.Record, []string) {
	if msg.Kind == hangouts.MessageMembership {
		return nil, []string{fmt.Sprintf("event %s: membership change not converted", msg.EventID)}
	}

	var warnings []string
	parts, ws := m.contentParts(msg, resolved)
	warnings = append(warnings, ws...)
	if len(parts) == 0 {
		warnings = append(warnings, fmt.Sprintf(
			"event %s: no convertible content in conversation %s", msg.EventID, conv.ID))
		return nil, warnings
	}

	sent := msg.SenderID == conv.Self.GaiaID

	if conv.Kind == hangouts.OneToOne && len(msg.Attachments) == 0 {
		sms, ws := m.mapSMS(conv, msg, sent)
		return sms, append(warnings, ws...)
	}
	mms, ws := m.mapMMS(conv, msg, sent, parts)
	return mms, append(warnings, ws...)
}

// contentPart is an intermediate payload before MMS part assembly.
type contentPart struct {
	contentType string
	text        string
	data        string // base64
}

func (m *Mapper) contentParts(msg hangouts.Message, resolved []media.Content) ([]contentPart, []string) {
	var parts []contentPart
	var warnings []string

	if msg.Body != "" {
		parts = append(parts, contentPart{contentType: "text/plain", text: msg.Body})
	}

	for i, att := range msg.Attachments {
		switch att.Kind {
		case hangouts.AttachmentPhoto:
			if i >= len(resolved) {
				continue
			}
			c := resolved[i]
			if c.Data != "" {
				parts = append(parts, contentPart{contentType: c.ContentType, data: c.Data})
			} else if c.Text != "" {
				parts = append(parts, contentPart{contentType: "text/plain", text: c.Text})
			}
		case hangouts.AttachmentAudio:
			warnings = append(warnings, fmt.Sprintf(
				"event %s: voicemail audio not converted", msg.EventID))
		}
	}

	return parts, warnings
}

func (m *Mapper) mapSMS(conv hangouts.Conversation, msg hangouts.Message, sent bool) (*smsbackup.SMS, []string) {
	address, warnings := m.resolveAddress(conv.ID, conv.Participants[0])

	direction := smsbackup.TypeReceived
	if sent {
		direction = smsbackup.TypeSent
	}

	return &smsbackup.SMS{
		Protocol:      "0",
		Address:       address,
		DateMillis:    msg.Timestamp.UnixMilli(),
		Type:          direction,
		Body:          msg.Body,
		DateSent:      defaultDateSent,
		ServiceCenter: m.cfg.ServiceCenter,
		Subject:       "null",
		Toa:           "null",
		ScToa:         "null",
		Read:          "1",
		Status:        "-1",
		Locked:        "0",
		SubID:         "-1",
	}, warnings
}

func (m *Mapper) mapMMS(conv hangouts.Conversation, msg hangouts.Message, sent bool, parts []contentPart) (*smsbackup.MMS, []string) {
	var warnings []string

	direction := smsbackup.TypeReceived
	mType := smsbackup.MTypeReceived
	if sent {
		direction = smsbackup.TypeSent
		mType = smsbackup.MTypeSent
	}

	selfAddress, ws := m.resolveAddress(conv.ID, conv.Self)
	warnings = append(warnings, ws...)

	mms := &smsbackup.MMS{
		DateMillis: msg.Timestamp.UnixMilli(),
		CtT:        smsbackup.MMSContentType,
		MsgBox:     direction,
		Rr:         "null",
		Sub:        "null",
		ReadStatus: "null",
		Address:    selfAddress,
		MID:        uuid.NewString(),
		MType:      mType,
	}

	// Address entries cover every participant including self; the sender
	// is the From entry, everyone else a To entry.
	for _, p := range append([]hangouts.Participant{conv.Self}, conv.Participants...) {
		address, ws := m.resolveAddress(conv.ID, p)
		warnings = append(warnings, ws...)
		addrType := smsbackup.AddrTypeTo
		if p.GaiaID == msg.SenderID {
			addrType = smsbackup.AddrTypeFrom
		}
		mms.Addrs = append(mms.Addrs, smsbackup.Addr{
			Address: address,
			Type:    addrType,
			Charset: "3",
		})
	}

	mms.Parts = append(mms.Parts, smilPart(parts))

	size := 0
	for _, p := range parts {
		part := smsbackup.Part{Seq: "0", Ct: p.contentType}
		if p.data != "" {
			part.Cl = "image"
			part.Chset = "null"
			part.Data = p.data
			size += len(p.data)
		} else {
			part.Cl = "text"
			part.Chset = "106" // utf-8
			part.Text = p.text
			size += len(p.text)
		}
		mms.Parts = append(mms.Parts, part)
	}
	mms.MSize = fmt.Sprintf("%d", size)

	return mms, warnings
}

// smilPart builds the seq -1 presentation scaffold every MMS leads with.
func smilPart(parts []contentPart) smsbackup.Part {
	text := smilText
	for _, p := range parts {
		if p.data != "" {
			text = smilImg
			break
		}
	}
	return smsbackup.Part{
		Seq:   "-1",
		Ct:    "application/smil",
		Name:  "null",
		Chset: "null",
		Cd:    "null",
		Fn:    "null",
		Cid:   "<smil>",
		Cl:    "smil.xml",
		CttS:  "null",
		CttT:  "null",
		Text:  text,
	}
}

// resolveAddress maps a participant to a canonical phone address. Contact
// overrides apply first; identifiers that still do not normalize pass
// through unchanged with a warning. Override keys are matched
// case-insensitively because the config layer lowercases map keys.
func (m *Mapper) resolveAddress(convID string, p hangouts.Participant) (string, []string) {
	raw := p.PhoneNumber
	if override, ok := m.cfg.Contacts[strings.ToLower(p.GaiaID)]; ok {
		raw = override
	} else if override, ok := m.cfg.Contacts[strings.ToLower(raw)]; ok && raw != "" {
		raw = override
	}

	if normalized, ok := smsbackup.NormalizeAddress(raw); ok {
		return normalized, nil
	}

	identifier := raw
	if identifier == "" {
		identifier = p.GaiaID
	}
	return identifier, []string{fmt.Sprintf(
		"conversation %s: participant %s has no resolvable phone number, keeping %q",
		convID, p.GaiaID, identifier)}
}
