package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder reads a TOML file.
type TomlFeeder struct {
	Path    string
	tracker FieldTracker
}

// NewTomlFeeder creates a feeder for the TOML file at filePath.
func NewTomlFeeder(filePath string) *TomlFeeder {
	return &TomlFeeder{Path: filePath}
}

func (t *TomlFeeder) SetFieldTracker(tracker FieldTracker) { t.tracker = tracker }

// Feed decodes the file into structure.
func (t *TomlFeeder) Feed(structure any) error {
	rv, ok := structPointer(structure)
	if !ok {
		return wrapStructureError(structure)
	}
	if _, err := toml.DecodeFile(t.Path, structure); err != nil {
		return fmt.Errorf("toml feeder: decode %s: %w", t.Path, err)
	}
	if t.tracker != nil {
		var data map[string]any
		if _, err := toml.DecodeFile(t.Path, &data); err == nil {
			trackMap(t.tracker, "TomlFeeder", SourceTOML, rv, data, "toml", "", "")
		}
	}
	return nil
}

// FeedKey decodes the table under key into target. A missing key leaves
// target untouched.
func (t *TomlFeeder) FeedKey(key string, target any) error {
	var all map[string]toml.Primitive
	md, err := toml.DecodeFile(t.Path, &all)
	if err != nil {
		return fmt.Errorf("failed to read toml: %w", err)
	}
	prim, ok := all[key]
	if !ok {
		return nil
	}
	if err := md.PrimitiveDecode(prim, target); err != nil {
		return fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	return nil
}
