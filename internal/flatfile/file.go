package flatfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound    = errors.New("conference file not found")
	ErrCorruptData = errors.New("corrupt conference data")
)

// File stores exactly one conference as a single encoded object.
type File struct {
	path  string
	codec Codec
}

func New(path string, codec Codec) *File {
	return &File{path: path, codec: codec}
}

// Open returns a File whose codec is chosen from the extension of path.
func Open(path string) (*File, error) {
	codec, err := CodecFor(path)
	if err != nil {
		return nil, err
	}
	return New(path, codec), nil
}

func (f *File) Path() string { return f.path }

// Load decodes the content of f.path.
func (f *File) Load() (conference.Conference, error) {
	log.Debug().Str("path", f.path).Str("codec", f.codec.Name()).Msg("Loading conference")

	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return conference.Conference{}, fmt.Errorf("%w: %s", ErrNotFound, f.path)
	case err != nil:
		return conference.Conference{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	var c *conference.Conference
	if err := f.codec.Unmarshal(data, &c); err != nil {
		return conference.Conference{}, fmt.Errorf("%w: decode %s as %s: %s", ErrCorruptData, f.path, f.codec.Name(), err)
	}
	// a JSON null or YAML ~ decodes without error but holds no conference
	if c == nil {
		return conference.Conference{}, fmt.Errorf("%w: %s holds no conference", ErrCorruptData, f.path)
	}

	return *c, nil
}

// Save replaces the content of f.path with c. The data is written to a
// temporary file in the same directory first, so an interrupted save leaves
// the previous content intact.
func (f *File) Save(c conference.Conference) error {
	log.Debug().Str("path", f.path).Str("codec", f.codec.Name()).Msg("Saving conference")

	data, err := f.codec.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conference: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}

	return nil
}

// Update loads the stored conference, applies fn and saves the result.
func (f *File) Update(fn func(*conference.Conference)) (conference.Conference, error) {
	c, err := f.Load()
	if err != nil {
		return conference.Conference{}, err
	}

	fn(&c)

	if err := f.Save(c); err != nil {
		return conference.Conference{}, err
	}
	return c, nil
}
