package properties

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

func parseFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read properties %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var data map[string]any
		if err := yaml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return flatten(data), nil
	case ".toml":
		var data map[string]any
		if err := toml.Unmarshal(content, &data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return flatten(data), nil
	case ".json":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	default:
		values, err := parseKeyValue(content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return values, nil
	}
}

// parseKeyValue reads the key=value format: '#' and '!' comments, '=' or
// ':' separators, trailing backslash continuation.
func parseKeyValue(content []byte) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNum := 0
	var pending strings.Builder

	for scanner.Scan() {
		lineNum++
		line := strings.TrimLeft(scanner.Text(), " \t")
		if pending.Len() == 0 && (line == "" || line[0] == '#' || line[0] == '!') {
			continue
		}
		if strings.HasSuffix(line, `\`) && !strings.HasSuffix(line, `\\`) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		pending.WriteString(line)
		logical := pending.String()
		pending.Reset()

		key, value, err := splitEntry(logical)
		if err != nil {
			return nil, fmt.Errorf("%w at line %d: %q", err, lineNum, logical)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending.Len() > 0 {
		key, value, err := splitEntry(pending.String())
		if err != nil {
			return nil, fmt.Errorf("%w at line %d", err, lineNum)
		}
		values[key] = value
	}
	return values, nil
}

func splitEntry(line string) (string, string, error) {
	idx := strings.IndexAny(line, "=:")
	if idx <= 0 {
		return "", "", ErrSyntax
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	if len(value) >= 2 && (value[0] == '"' && value[len(value)-1] == '"' || value[0] == '\'' && value[len(value)-1] == '\'') {
		value = value[1 : len(value)-1]
	}
	return key, value, nil
}

// flatten turns nested maps into dotted keys; lists become comma separated.
func flatten(data map[string]any) map[string]string {
	out := make(map[string]string)
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, x := range t {
				walk(join(prefix, k), x)
			}
		case map[any]any:
			for k, x := range t {
				walk(join(prefix, fmt.Sprint(k)), x)
			}
		case []any:
			parts := make([]string, 0, len(t))
			for _, x := range t {
				parts = append(parts, fmt.Sprint(x))
			}
			out[prefix] = strings.Join(parts, ",")
		case nil:
			out[prefix] = ""
		default:
			out[prefix] = fmt.Sprint(t)
		}
	}
	for k, v := range data {
		walk(k, v)
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
