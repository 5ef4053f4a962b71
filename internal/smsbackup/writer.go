package smsbackup

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrWrite reports a destination that could not be written. No partial
// output file is left behind.
var ErrWrite = errors.New("write sms backup")

// appVersion is the SMS Backup & Restore release the output schema was
// modeled on. The app checks nothing, but the comment line documents it
// and Read warns when versions diverge.
const appVersion = "10.06.110"

// Write serializes records in the given order to path, atomically: content
// goes to a temp file in the destination directory which is renamed into
// place only after a successful flush.
func Write(path string, records []Record) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".smsbackup-*.xml")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %v", ErrWrite, dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := writeDocument(w, records); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrWrite, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrWrite, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: rename into %s: %v", ErrWrite, path, err)
	}
	return nil
}

func writeDocument(w *bufio.Writer, records []Record) error {
	now := time.Now()

	fmt.Fprintf(w, "<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>\n")
	fmt.Fprintf(w, "<!--File Created By SMS Backup & Restore v%s via hangouts-sms-export on %s-->\n",
		appVersion, now.Format(time.RFC3339))

	enc := xml.NewEncoder(w)
	root := xml.StartElement{
		Name: xml.Name{Local: "smses"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "count"}, Value: strconv.Itoa(len(records))},
			{Name: xml.Name{Local: "backup_set"}, Value: uuid.NewString()},
			{Name: xml.Name{Local: "backup_date"}, Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("encode root: %v", err)
	}
	// Records are encoded one by one so sms and mms elements keep their
	// merged chronological interleaving in the document.
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %v", err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return fmt.Errorf("encode root end: %v", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("flush encoder: %v", err)
	}
	w.WriteByte('\n')
	return nil
}
