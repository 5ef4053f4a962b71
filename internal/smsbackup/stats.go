package smsbackup

import "strings"

// Substitute message bodies for content that could not be converted, kept
// greppable in the restored history.
const (
	errorMarker = "ERROR"
	errorDelim  = ":: "

	// ErrorImageNotFound marks an attachment whose download returned 404.
	ErrorImageNotFound = "IMAGE NOT FOUND"
)

// ErrorText builds a substitute body for content that could not be
// converted, e.g. ErrorText(ErrorImageNotFound, url).
func ErrorText(kind, detail string) string {
	return errorMarker + errorDelim + kind + errorDelim + detail
}

// IsErrorText reports whether a body is a substitute error text and which
// kind it carries.
func IsErrorText(body string) (string, bool) {
	if !strings.HasPrefix(body, errorMarker+errorDelim) {
		return "", false
	}
	rest := strings.TrimPrefix(body, errorMarker+errorDelim)
	kind, _, found := strings.Cut(rest, errorDelim)
	if !found {
		return "", false
	}
	return kind, true
}

// Counts summarizes a record sequence for the end-of-run report.
type Counts struct {
	Messages      int
	SMS           int
	MMS           int
	Sent          int
	Received      int
	Contacts      int
	ImagesMissing int
}

// Stats walks a record sequence and tallies the end-of-run summary.
func Stats(records []Record) Counts {
	var c Counts
	contacts := make(map[string]bool)

	for _, rec := range records {
		c.Messages++
		switch r := rec.(type) {
		case *SMS:
			c.SMS++
			contacts[r.Address] = true
			countDirection(&c, r.Type)
		case *MMS:
			c.MMS++
			for _, a := range r.Addrs {
				contacts[a.Address] = true
			}
			countDirection(&c, r.MsgBox)
			for _, p := range r.Parts {
				if kind, ok := IsErrorText(p.Text); ok && kind == ErrorImageNotFound {
					c.ImagesMissing++
				}
			}
		}
	}

	c.Contacts = len(contacts)
	return c
}

func countDirection(c *Counts, t string) {
	switch t {
	case TypeReceived:
		c.Received++
	case TypeSent:
		c.Sent++
	}
}
