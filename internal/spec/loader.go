package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialization of a spec document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by a file name, or "" when the extension is not a spec extension.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	return ""
}

// LoadFile reads and parses a spec file.
func LoadFile(path string) (*DeploySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	return Load(data, FormatOf(path))
}

// Load parses spec bytes. The document is either a list of actions or a map holding
// an "actions" list. An empty format is treated as YAML.
func Load(data []byte, format Format) (*DeploySpec, error) {
	var doc any
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
		doc = fromJSON(doc)
	default:
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if root.Kind != 0 {
			keepTargetText(&root)
			if err := root.Decode(&doc); err != nil {
				return nil, fmt.Errorf("parsing YAML: %w", err)
			}
		}
	}
	return fromDocument(doc)
}

// Marshal renders a spec as canonical YAML.
func Marshal(d *DeploySpec) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.Actions); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode renders a spec canonically in the given format.
func Encode(d *DeploySpec, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(d.Actions, "", "  ")
	}
	return Marshal(d)
}

func fromDocument(doc any) (*DeploySpec, error) {
	var entries []any
	switch v := doc.(type) {
	case nil:
		return nil, fmt.Errorf("spec has no actions")
	case []any:
		entries = v
	case map[string]any:
		raw, ok := lookupAlias(v, "actions", "Actions")
		if !ok {
			return nil, fmt.Errorf("spec document has no actions list")
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("spec actions must be a list, got %T", raw)
		}
		entries = list
	default:
		return nil, fmt.Errorf("spec document must be a list or a map, got %T", doc)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("spec has no actions")
	}

	ds := &DeploySpec{Actions: make([]ActionSpec, 0, len(entries))}
	for i, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("action at index %d is not a map", i)
		}
		as, err := actionFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("action at index %d: %w", i, err)
		}
		ds.Actions = append(ds.Actions, as)
	}
	return ds, nil
}

func actionFromMap(m map[string]any) (ActionSpec, error) {
	var as ActionSpec
	var err error
	if as.Label, err = stringField(m, "label", "Label", "name", "Name"); err != nil {
		return as, err
	}
	// "type" and "action" are the route-name spellings used by older documents
	if as.Kind, err = stringField(m, "kind", "Kind", "type", "Type", "action", "Action"); err != nil {
		return as, err
	}
	if as.Scope, err = stringField(m, "scope", "Scope"); err != nil {
		return as, err
	}
	if raw, ok := lookupAlias(m, "params", "Params", "spec", "Spec"); ok && raw != nil {
		p, ok := raw.(map[string]any)
		if !ok {
			return as, fmt.Errorf("params must be a map, got %T", raw)
		}
		as.Params = p
	}
	if raw, ok := lookupAlias(m, "depends_on", "DependsOn", "dependsOn"); ok && raw != nil {
		switch v := raw.(type) {
		case string:
			as.DependsOn = []string{v}
		case []any:
			for _, d := range v {
				s, ok := d.(string)
				if !ok {
					return as, fmt.Errorf("depends_on entries must be strings, got %T", d)
				}
				as.DependsOn = append(as.DependsOn, s)
			}
		default:
			return as, fmt.Errorf("depends_on must be a list, got %T", raw)
		}
	}
	return as, nil
}

func lookupAlias(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringField(m map[string]any, keys ...string) (string, error) {
	v, ok := lookupAlias(m, keys...)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", keys[0], v)
	}
	return s, nil
}

// targetKeys name the parameters holding account ids and regions.
var targetKeys = map[string]bool{"account": true, "accounts": true, "region": true, "regions": true}

// keepTargetText retags numeric scalars under target keys as strings so that account ids
// such as 012345678901 keep their source text instead of decoding as numbers.
func keepTargetText(n *yaml.Node) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			keepTargetText(c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if targetKeys[strings.ToLower(k.Value)] {
				asText(v)
				continue
			}
			keepTargetText(v)
		}
	}
}

func asText(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		if t := n.ShortTag(); t == "!!int" || t == "!!float" {
			n.Tag = "!!str"
		}
	case yaml.SequenceNode:
		for _, c := range n.Content {
			asText(c)
		}
	}
}

// fromJSON converts json.Number values so JSON and YAML documents decode to the same shapes.
func fromJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = fromJSON(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = fromJSON(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}
