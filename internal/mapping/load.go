package mapping

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// identRegex accepts plain SQL identifiers. Table names may be schema-qualified.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// tableDoc is the on-disk shape of one table mapping. Column maps are kept as
// nodes so their document order survives decoding.
type tableDoc struct {
	Columns     yaml.Node         `yaml:"colunas"`
	ForeignKeys yaml.Node         `yaml:"fks"`
	UniqueField string            `yaml:"campo_unico"`
	IDColumn    string            `yaml:"id_coluna"`
	Types       map[string]string `yaml:"tipos"`
}

// Load reads and validates a mapping document from disk.
// JSON and YAML documents are both accepted.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: fmt.Errorf("read: %w", err)}
	}
	return parse(data, path)
}

// Parse validates a mapping document held in memory.
func Parse(data []byte) (*Spec, error) {
	return parse(data, "<inline>")
}

func parse(data []byte, source string) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Source: source, Err: fmt.Errorf("parse: %w", err)}
	}

	root := &doc
	if root.Kind == 0 {
		return nil, &ConfigError{Source: source, Problems: []string{"document is empty"}}
	}
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, &ConfigError{Source: source, Problems: []string{"document is empty"}}
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, &ConfigError{Source: source, Problems: []string{"top-level value must be an object keyed by table"}}
	}
	if len(root.Content) == 0 {
		return nil, &ConfigError{Source: source, Problems: []string{"no tables declared"}}
	}

	var p problems
	seen := make(map[string]bool)
	tables := make([]TableMapping, 0, len(root.Content)/2)

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := strings.TrimSpace(root.Content[i].Value)
		body := root.Content[i+1]

		if key == "" {
			p.addf("line %d: empty table key", root.Content[i].Line)
			continue
		}
		if seen[key] {
			p.addf("%s: declared more than once", key)
			continue
		}
		seen[key] = true

		t, ok := decodeTable(key, body, &p)
		if ok {
			tables = append(tables, t)
		}
	}

	// References are checked once every key is known.
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if !seen[fk.Ref] {
				p.addf("%s: fks.%s references unknown table %q", t.Key, fk.Column, fk.Ref)
			}
		}
	}

	if err := p.err(source); err != nil {
		return nil, err
	}
	return newSpec(tables), nil
}

func decodeTable(key string, body *yaml.Node, p *problems) (TableMapping, bool) {
	t := TableMapping{Key: key, Table: PhysicalTable(key)}

	if body.Kind != yaml.MappingNode {
		p.addf("%s: table mapping must be an object", key)
		return t, false
	}

	var doc tableDoc
	if err := body.Decode(&doc); err != nil {
		p.addf("%s: %v", key, err)
		return t, false
	}

	before := len(*p)

	if !isTableName(t.Table) {
		p.addf("%s: invalid table name %q", key, t.Table)
	}

	cols, err := orderedPairs(&doc.Columns)
	if err != nil {
		p.addf("%s: colunas: %v", key, err)
	}
	fks, err := orderedPairs(&doc.ForeignKeys)
	if err != nil {
		p.addf("%s: fks: %v", key, err)
	}

	dests := make(map[string]bool)
	sources := make(map[string]bool)
	for _, kv := range cols {
		src, dest := kv[0], strings.TrimSpace(kv[1])
		if sources[src] {
			p.addf("%s: source field %q mapped twice", key, src)
		}
		sources[src] = true
		if !identRegex.MatchString(dest) {
			p.addf("%s: invalid column name %q", key, dest)
		}
		if dests[dest] {
			p.addf("%s: column %q written twice", key, dest)
		}
		dests[dest] = true
		t.Columns = append(t.Columns, Column{Source: src, Dest: dest})
	}

	for _, kv := range fks {
		col, ref := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		if !identRegex.MatchString(col) {
			p.addf("%s: invalid foreign key column %q", key, col)
		}
		if dests[col] {
			p.addf("%s: column %q written twice", key, col)
		}
		dests[col] = true
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{Column: col, Ref: ref})
	}

	t.UniqueField = strings.TrimSpace(doc.UniqueField)
	t.IDColumn = strings.TrimSpace(doc.IDColumn)

	if t.UniqueField != "" {
		if !identRegex.MatchString(t.UniqueField) {
			p.addf("%s: invalid campo_unico %q", key, t.UniqueField)
		}
		if t.IDColumn == "" {
			p.addf("%s: campo_unico %q requires id_coluna", key, t.UniqueField)
		}
	}
	if t.IDColumn != "" && !identRegex.MatchString(t.IDColumn) {
		p.addf("%s: invalid id_coluna %q", key, t.IDColumn)
	}

	if len(doc.Types) > 0 {
		t.Types = make(map[string]ValueType, len(doc.Types))
		for col, typ := range doc.Types {
			vt := ValueType(strings.ToLower(strings.TrimSpace(typ)))
			if !validTypes[vt] {
				p.addf("%s: tipos.%s: unknown type %q", key, col, typ)
				continue
			}
			if !dests[col] {
				p.addf("%s: tipos.%s: not a mapped column", key, col)
				continue
			}
			t.Types[col] = vt
		}
	}

	return t, len(*p) == before
}

// orderedPairs flattens a string-to-string mapping node, preserving document order.
// A missing or null node yields no pairs.
func orderedPairs(n *yaml.Node) ([][2]string, error) {
	if n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected an object", n.Line)
	}
	out := make([][2]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode || v.Tag == "!!null" || v.Value == "" {
			return nil, fmt.Errorf("line %d: %q must map to a column name", k.Line, k.Value)
		}
		out = append(out, [2]string{k.Value, v.Value})
	}
	return out, nil
}

func isTableName(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, part := range parts {
		if !identRegex.MatchString(part) {
			return false
		}
	}
	return true
}

// CheckForwardReferences turns forward references into a ConfigError.
// Used when the caller wants them rejected instead of resolved to null.
func (s *Spec) CheckForwardReferences() error {
	var p problems
	for _, fr := range s.ForwardReferences() {
		p.addf("%s: fks.%s references %q, which is processed later", fr.Table, fr.Column, fr.Ref)
	}
	return p.err("")
}
