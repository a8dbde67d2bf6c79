package pkgdb

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"
)

// DBFile is the database file name inside the database directory. The
// format version is part of the name so incompatible layouts never
// load silently.
const DBFile = "pkgdb-0.38.json"

// Dir returns the database directory for a root directory.
func Dir(rootdir string) string {
	return filepath.Join(rootdir, "var", "db", "xpkg")
}

// Load reads the database for rootdir. A missing file yields an empty
// database; the directory is not created until Save.
func Load(rootdir string) (*DB, error) {
	path := filepath.Join(Dir(rootdir), DBFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrapf(err, "reading pkgdb %s", path)
	}
	return decode(data, path)
}

func decode(data []byte, path string) (*DB, error) {
	dict := orderedmap.New()
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, errors.Wrapf(err, "parsing pkgdb %s", path)
	}
	db := New()
	for _, name := range dict.Keys() {
		raw, _ := dict.Get(name)
		// Round-trip each value through JSON so records decode with
		// their typed fields regardless of the dictionary's dynamic
		// representation.
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding pkgdb entry %s", name)
		}
		rec := &PackageRecord{}
		if err := json.Unmarshal(buf, rec); err != nil {
			return nil, errors.Wrapf(err, "decoding pkgdb entry %s", name)
		}
		if rec.Name == "" {
			rec.Name = name
		}
		if rec.State == "" {
			rec.State = StateInstalled
		}
		db.records[name] = rec
		db.order = append(db.order, name)
	}
	db.Reindex()
	return db, nil
}

// Save atomically writes the database for rootdir, creating the
// database directory as needed.
func (db *DB) Save(rootdir string) error {
	dir := Dir(rootdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating pkgdb dir %s", dir)
	}
	data, err := db.Serialize()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, DBFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing pkgdb %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "renaming pkgdb into place")
	}
	return nil
}

// Serialize encodes the database as an ordered dictionary keyed by
// package name. Key order follows database order, so an unmodified
// database serializes byte-identically to what was loaded.
func (db *DB) Serialize() ([]byte, error) {
	dict := orderedmap.New()
	for _, name := range db.order {
		dict.Set(name, db.records[name])
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dict); err != nil {
		return nil, errors.Wrap(err, "encoding pkgdb")
	}
	return buf.Bytes(), nil
}
