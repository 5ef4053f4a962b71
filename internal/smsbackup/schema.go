package smsbackup

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
)

// Attribute values the consuming app expects verbatim. Most of the schema
// is "null" strings rather than absent attributes.
// https://synctech.com.au/sms-backup-restore/fields-in-xml-backup-files/
const (
	TypeReceived = "1"
	TypeSent     = "2"

	AddrTypeFrom = "137"
	AddrTypeTo   = "151"

	MMSContentType = "application/vnd.wap.multipart.related"
	// m_type per the MMS spec: send-req for sent, retrieve-conf for received.
	MTypeSent     = "128"
	MTypeReceived = "132"
)

// Record is one backup entry, either SMS or MMS, ordered by Date and
// deduplicated by Key across merge inputs.
type Record interface {
	// Date is the record timestamp in epoch milliseconds.
	Date() int64
	// Key is the (participant-set, timestamp, body) dedup key.
	Key() string
}

// SMS is a plain text message to or from a single address.
type SMS struct {
	XMLName       xml.Name `xml:"sms"`
	Protocol      string   `xml:"protocol,attr"`
	Address       string   `xml:"address,attr"`
	DateMillis    int64    `xml:"date,attr"`
	Type          string   `xml:"type,attr"`
	Body          string   `xml:"body,attr"`
	DateSent      int64    `xml:"date_sent,attr"`
	ServiceCenter string   `xml:"service_center,attr"`
	Subject       string   `xml:"subject,attr"`
	Toa           string   `xml:"toa,attr"`
	ScToa         string   `xml:"sc_toa,attr"`
	Read          string   `xml:"read,attr"`
	Status        string   `xml:"status,attr"`
	Locked        string   `xml:"locked,attr"`
	SubID         string   `xml:"sub_id,attr"`
}

func (s *SMS) Date() int64 { return s.DateMillis }

func (s *SMS) Key() string {
	return dedupKey([]string{s.Address}, s.DateMillis, s.Body)
}

// MMS is a multimedia or group message with parts and per-participant
// address entries.
type MMS struct {
	XMLName    xml.Name `xml:"mms"`
	DateMillis int64    `xml:"date,attr"`
	CtT        string   `xml:"ct_t,attr"`
	MsgBox     string   `xml:"msg_box,attr"`
	Rr         string   `xml:"rr,attr"`
	Sub        string   `xml:"sub,attr"`
	ReadStatus string   `xml:"read_status,attr"`
	Address    string   `xml:"address,attr"`
	MID        string   `xml:"m_id,attr"`
	MSize      string   `xml:"m_size,attr"`
	MType      string   `xml:"m_type,attr"`
	Parts      []Part   `xml:"parts>part"`
	Addrs      []Addr   `xml:"addrs>addr"`
}

// Part is one payload of an MMS: the smil scaffold, body text, or image data.
type Part struct {
	Seq   string `xml:"seq,attr"`
	Ct    string `xml:"ct,attr"`
	Name  string `xml:"name,attr,omitempty"`
	Chset string `xml:"chset,attr,omitempty"`
	Cd    string `xml:"cd,attr,omitempty"`
	Fn    string `xml:"fn,attr,omitempty"`
	Cid   string `xml:"cid,attr,omitempty"`
	Cl    string `xml:"cl,attr,omitempty"`
	CttS  string `xml:"ctt_s,attr,omitempty"`
	CttT  string `xml:"ctt_t,attr,omitempty"`
	Text  string `xml:"text,attr,omitempty"`
	Data  string `xml:"data,attr,omitempty"`
}

// Addr is one participant of an MMS.
type Addr struct {
	Address string `xml:"address,attr"`
	Type    string `xml:"type,attr"`
	Charset string `xml:"charset,attr"`
}

func (m *MMS) Date() int64 { return m.DateMillis }

func (m *MMS) Key() string {
	addrs := make([]string, 0, len(m.Addrs))
	for _, a := range m.Addrs {
		addrs = append(addrs, a.Address)
	}
	return dedupKey(addrs, m.DateMillis, m.BodyText())
}

// BodyText returns the text payload of the message, empty for pure media.
func (m *MMS) BodyText() string {
	for _, p := range m.Parts {
		if p.Ct == "text/plain" {
			return p.Text
		}
	}
	return ""
}

// dedupKey builds the (participant-set, timestamp, body) identity used to
// recognize the same message across merge inputs. Addresses are normalized
// and sorted so the set compares equal regardless of formatting or order.
func dedupKey(addresses []string, dateMillis int64, body string) string {
	normalized := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if n, ok := NormalizeAddress(a); ok {
			a = n
		}
		normalized = append(normalized, a)
	}
	sort.Strings(normalized)

	return strings.Join(normalized, ",") + "|" + strconv.FormatInt(dateMillis, 10) + "|" + body
}

// NormalizeAddress reduces a phone number to canonical digits with an
// optional leading +. It reports false for identifiers that do not look
// like phone numbers; those pass through unchanged upstream.
func NormalizeAddress(s string) (string, bool) {
	var sb strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '+' && i == 0:
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, drop
		default:
			return s, false
		}
	}
	digits := strings.TrimPrefix(sb.String(), "+")
	if len(digits) < 3 || len(digits) > 15 {
		return s, false
	}
	return sb.String(), true
}
