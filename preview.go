package jigsaw

import (
	"os"
	"path/filepath"
)

// preview is a temporary copy of the accepted file that the presentation
// layer can display while the puzzle is generated. It must be released
// once it is superseded.
type preview struct {
	path string
}

func newPreview(name string, b []byte) (*preview, error) {
	f, err := os.CreateTemp("", "jigsaw-preview-*"+filepath.Ext(name))
	if err != nil {
		return nil, err
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}

	return &preview{path: f.Name()}, nil
}

func (p *preview) Path() string {
	return p.path
}

func (p *preview) Release() error {
	return os.Remove(p.path)
}
