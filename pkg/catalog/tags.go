package catalog

import (
	"fmt"
	"os"
	"regexp"

	"sigs.k8s.io/yaml"
)

// Tags adjust what introspection found: they hide tables and columns, declare extra unique
// keys and declare foreign keys the database does not enforce.
//
//	hiddenTables: ["^audit_"]
//	tables:
//	  transfers:
//	    hiddenColumns: [raw_payload]
//	    foreignKeys:
//	      - columns: [from_id]
//	        references: accounts
//	        forwardName: from
//	        backwardName: outgoing_transfers
type Tags struct {
	HiddenTables []string             `json:"hiddenTables,omitempty"`
	Tables       map[string]TableTags `json:"tables,omitempty"`
}

type TableTags struct {
	Hidden        bool            `json:"hidden,omitempty"`
	HiddenColumns []string        `json:"hiddenColumns,omitempty"`
	UniqueKeys    [][]string      `json:"uniqueKeys,omitempty"`
	ForeignKeys   []ForeignKeyTag `json:"foreignKeys,omitempty"`
}

// ForeignKeyTag declares, or renames, a relation. When the columns match an introspected
// foreign key only the names are applied.
type ForeignKeyTag struct {
	Columns      []string `json:"columns"`
	References   string   `json:"references"`
	RefColumns   []string `json:"refColumns,omitempty"`
	ForwardName  string   `json:"forwardName,omitempty"`
	BackwardName string   `json:"backwardName,omitempty"`
}

// ParseTags decodes a YAML (or JSON) tags document.
func ParseTags(data []byte) (*Tags, error) {
	var t Tags
	if err := yaml.UnmarshalStrict(data, &t); err != nil {
		return nil, fmt.Errorf("parsing tags: %w", err)
	}
	for _, expr := range t.HiddenTables {
		if _, err := regexp.Compile(expr); err != nil {
			return nil, fmt.Errorf("parsing tags: hidden table pattern %q: %w", expr, err)
		}
	}
	return &t, nil
}

// LoadTags reads a tags file from disk.
func LoadTags(path string) (*Tags, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tags file: %w", err)
	}
	return ParseTags(data)
}

func (t *Tags) table(name string) TableTags {
	if t == nil {
		return TableTags{}
	}
	return t.Tables[name]
}
