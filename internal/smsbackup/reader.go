package smsbackup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
)

// ErrMalformedBackup reports an existing backup file that could not be
// parsed. This is fatal: silently dropping a backup the user asked to merge
// would lose data.
var ErrMalformedBackup = errors.New("malformed sms backup file")

var versionRe = regexp.MustCompile(`v(\d+)\.(\d+)\.(\d+)`)

// Read parses an existing SMS Backup & Restore XML file into records in
// document order. A version mismatch against the schema this tool was
// modeled on is reported as a warning, not an error.
func Read(path string) ([]Record, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrMalformedBackup, path, err)
	}

	warnings := checkCreatorComment(path, data)

	records, err := decodeRecords(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformedBackup, path, err)
	}
	return records, warnings, nil
}

// checkCreatorComment inspects the comment line the app writes below the
// XML declaration and warns when the file comes from a different release.
func checkCreatorComment(path string, data []byte) []string {
	lines := bytes.SplitN(data, []byte("\n"), 3)
	if len(lines) < 2 || !bytes.Contains(lines[1], []byte("File Created By")) {
		return []string{fmt.Sprintf("%s: no creator comment, cannot check backup version", path)}
	}
	m := versionRe.FindSubmatch(lines[1])
	if m == nil {
		return []string{fmt.Sprintf("%s: creator comment has no version", path)}
	}
	version := fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3])
	if version != appVersion {
		return []string{fmt.Sprintf(
			"%s: backup was created by v%s, this tool targets v%s; attempting anyway",
			path, version, appVersion)}
	}
	return nil
}

func decodeRecords(data []byte) ([]Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var records []Record
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !sawRoot {
			if start.Name.Local != "smses" {
				return nil, fmt.Errorf("root element is <%s>, want <smses>", start.Name.Local)
			}
			sawRoot = true
			continue
		}

		switch start.Name.Local {
		case "sms":
			var sms SMS
			if err := dec.DecodeElement(&sms, &start); err != nil {
				return nil, fmt.Errorf("decode sms: %v", err)
			}
			records = append(records, &sms)
		case "mms":
			var mms MMS
			if err := dec.DecodeElement(&mms, &start); err != nil {
				return nil, fmt.Errorf("decode mms: %v", err)
			}
			records = append(records, &mms)
		default:
			// Unknown children (call logs etc.) are not merged.
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("skip <%s>: %v", start.Name.Local, err)
			}
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("no <smses> root element")
	}
	return records, nil
}
