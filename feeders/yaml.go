package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads a YAML file.
type YamlFeeder struct {
	Path    string
	tracker FieldTracker
}

// NewYamlFeeder creates a feeder for the YAML file at filePath.
func NewYamlFeeder(filePath string) *YamlFeeder {
	return &YamlFeeder{Path: filePath}
}

func (y *YamlFeeder) SetFieldTracker(tracker FieldTracker) { y.tracker = tracker }

// Feed decodes the file into structure.
func (y *YamlFeeder) Feed(structure any) error {
	rv, ok := structPointer(structure)
	if !ok {
		return wrapStructureError(structure)
	}
	content, err := os.ReadFile(y.Path)
	if err != nil {
		return fmt.Errorf("yaml feeder: %w", err)
	}
	if err := yaml.Unmarshal(content, structure); err != nil {
		return fmt.Errorf("yaml feeder: decode %s: %w", y.Path, err)
	}
	if y.tracker != nil {
		var data map[string]any
		if err := yaml.Unmarshal(content, &data); err == nil {
			trackMap(y.tracker, "YamlFeeder", SourceYAML, rv, data, "yaml", "", "")
		}
	}
	return nil
}

// FeedKey decodes the value under the top level key into target. A missing
// key leaves target untouched.
func (y *YamlFeeder) FeedKey(key string, target any) error {
	content, err := os.ReadFile(y.Path)
	if err != nil {
		return fmt.Errorf("yaml feeder: %w", err)
	}
	var all map[string]yaml.Node
	if err := yaml.Unmarshal(content, &all); err != nil {
		return fmt.Errorf("failed to read YAML: %w", err)
	}
	node, ok := all[key]
	if !ok {
		return nil
	}
	if err := node.Decode(target); err != nil {
		return fmt.Errorf("failed to decode key %s: %w", key, err)
	}
	return nil
}
