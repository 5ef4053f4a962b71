package hangouts

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// archiveDataPath is where takeout.google.com places the Hangouts dump
// inside the export ZIP.
const archiveDataPath = "Takeout/Hangouts/Hangouts.json"

// ReadArchive opens a Takeout ZIP and parses the Hangouts data inside it.
func ReadArchive(path string) ([]Conversation, []string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open archive %s: %v", ErrMalformedExport, path, err)
	}
	defer zr.Close()

	f, err := zr.Open(archiveDataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: archive has no %s", ErrMalformedExport, archiveDataPath)
		}
		return nil, nil, fmt.Errorf("%w: open %s: %v", ErrMalformedExport, archiveDataPath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrMalformedExport, archiveDataPath, err)
	}

	return ParseExport(data)
}
