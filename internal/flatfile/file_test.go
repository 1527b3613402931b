package flatfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dannyrandall/conferences/internal/conference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecFor(t *testing.T) {
	tests := []struct {
		path      string
		expected  Codec
		expectErr bool
	}{
		{path: "data.pck", expected: Gob},
		{path: "dir/data.GOB", expected: Gob},
		{path: "file-foo.bin", expected: Gob},
		{path: "data.json", expected: JSON},
		{path: "data.yaml", expected: YAML},
		{path: "data.yml", expected: YAML},
		{path: "data.fs", expectErr: true},
		{path: "data", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			codec, err := CodecFor(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected.Name(), codec.Name())
		})
	}
}

func TestSaveLoad(t *testing.T) {
	records := []conference.Conference{
		conference.New("pycon", 2011),
		conference.New("", 0),
		conference.New("GopherCon EU", -1),
		conference.New("ünïcode ☃", 1<<40),
	}

	for _, codec := range []Codec{Gob, JSON, YAML} {
		t.Run(codec.Name(), func(t *testing.T) {
			f := New(filepath.Join(t.TempDir(), "data"), codec)
			for _, c := range records {
				require.NoError(t, f.Save(c))

				got, err := f.Load()
				require.NoError(t, err)
				assert.Equal(t, c, got)
			}
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.pck")

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Save(conference.New("pycon", 2011)))

	r, err := Open(path)
	require.NoError(t, err)
	c, err := r.Load()
	require.NoError(t, err)
	assert.Equal(t, "Pycon", c.Title())
	assert.Equal(t, 2011, c.Year)
}

func TestUpdate(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "data.pck"), Gob)
	require.NoError(t, f.Save(conference.New("pycon", 2011)))

	updated, err := f.Update(func(c *conference.Conference) { c.SetYear(2012) })
	require.NoError(t, err)
	assert.Equal(t, 2012, updated.Year)

	c, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "pycon", c.Name)
	assert.Equal(t, 2012, c.Year)
}

func TestUpdateMissingFile(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.pck"), Gob)

	called := false
	_, err := f.Update(func(*conference.Conference) { called = true })
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, called)
}

func TestLoadNotFound(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing.json"), JSON)
	_, err := f.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	gobData, err := Gob.Marshal(conference.New("pycon", 2011))
	require.NoError(t, err)

	tests := map[string]struct {
		codec Codec
		data  []byte
	}{
		"gob garbage":            {codec: Gob, data: []byte("not a conference")},
		"gob trailing data":      {codec: Gob, data: append(gobData, "garbage"...)},
		"json garbage":           {codec: JSON, data: []byte("not a conference")},
		"json null":              {codec: JSON, data: []byte("null")},
		"json trailing data":     {codec: JSON, data: []byte(`{"name":"pycon","year":2011} trailing garbage`)},
		"json second document":   {codec: JSON, data: []byte(`{"name":"pycon","year":2011}{"name":"pycon","year":2012}`)},
		"json unknown field":     {codec: JSON, data: []byte(`{"name":"pycon","year":2011,"city":"Atlanta"}`)},
		"yaml garbage":           {codec: YAML, data: []byte("not a conference")},
		"yaml null":              {codec: YAML, data: []byte("~\n")},
		"yaml empty":             {codec: YAML, data: []byte("")},
		"yaml trailing document": {codec: YAML, data: []byte("name: pycon\nyear: 2011\n---\n[[[\n")},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data")
			require.NoError(t, os.WriteFile(path, tc.data, 0o600))

			_, err := New(path, tc.codec).Load()
			assert.ErrorIs(t, err, ErrCorruptData)
		})
	}
}

func TestLoadAllowsTrailingWhitespace(t *testing.T) {
	for name, tc := range map[string]struct {
		codec Codec
		data  string
	}{
		"json": {codec: JSON, data: "{\"name\":\"pycon\",\"year\":2011}\n\n"},
		"yaml": {codec: YAML, data: "name: pycon\nyear: 2011\n\n"},
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data")
			require.NoError(t, os.WriteFile(path, []byte(tc.data), 0o600))

			c, err := New(path, tc.codec).Load()
			require.NoError(t, err)
			assert.Equal(t, conference.New("pycon", 2011), c)
		})
	}
}

func TestSaveCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "data.json")
	require.NoError(t, New(path, JSON).Save(conference.New("pycon", 2011)))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := New(filepath.Join(dir, "data.yaml"), YAML)
	require.NoError(t, f.Save(conference.New("pycon", 2011)))
	require.NoError(t, f.Save(conference.New("pycon", 2012)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "data.yaml", entries[0].Name())
}
