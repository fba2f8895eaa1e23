package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Source string

const (
	SourceGIANT   Source = "GIANT"
	SourceGTEx    Source = "GTEx"
	SourceBioGRID Source = "BioGRID"
	SourceTCGA    Source = "TCGA"
)

// Sources lists every source in output order.
var Sources = []Source{SourceGIANT, SourceGTEx, SourceBioGRID, SourceTCGA}

func (s Source) Valid() bool {
	switch s {
	case SourceGIANT, SourceGTEx, SourceBioGRID, SourceTCGA:
		return true
	}
	return false
}

// Tissue is one row of the tissue synonym table. It doubles as the tissue
// descriptor attached to a result column.
type Tissue struct {
	UberonID *string `yaml:"uberon_id" json:"uberon_id,omitempty"`
	BTOID    *string `yaml:"bto_id" json:"bto_id,omitempty"`
	Label    string  `yaml:"bg_label" json:"bg_label"`
}

// Column describes the dimensions encoded in a raw result column name.
type Column struct {
	Source     Source  `yaml:"source" json:"source"`
	Type       string  `yaml:"type" json:"type"`
	CancerType *string `yaml:"cancer_type" json:"cancer_type"`
	Tissue     *Tissue `yaml:"tissue" json:"tissue"`
}

// Tables holds both lookup tables. It is never mutated after Load.
type Tables struct {
	Tissues []Tissue
	Columns map[string]Column
}

//go:embed data/tissues.json
var defaultTissues []byte

//go:embed data/columns.json
var defaultColumns []byte

// Load reads both tables. An empty path selects the bundled table.
func Load(tissuesPath, columnsPath string) (*Tables, error) {
	tissues, err := LoadTissues(tissuesPath)
	if err != nil {
		return nil, err
	}
	columns, err := LoadColumns(columnsPath)
	if err != nil {
		return nil, err
	}
	return &Tables{Tissues: tissues, Columns: columns}, nil
}

func LoadTissues(path string) ([]Tissue, error) {
	content, err := readOrDefault(path, defaultTissues)
	if err != nil {
		return nil, err
	}
	return ParseTissues(content)
}

func LoadColumns(path string) (map[string]Column, error) {
	content, err := readOrDefault(path, defaultColumns)
	if err != nil {
		return nil, err
	}
	return ParseColumns(content)
}

// ParseTissues decodes a JSON or YAML array of synonym entries.
func ParseTissues(content []byte) ([]Tissue, error) {
	var tissues []Tissue
	if err := yaml.Unmarshal(content, &tissues); err != nil {
		return nil, fmt.Errorf("decoding tissue synonyms: %w", err)
	}
	if len(tissues) == 0 {
		return nil, errors.New("tissue synonym table empty")
	}
	for i, t := range tissues {
		if t.Label == "" {
			return nil, fmt.Errorf("tissue synonym entry %d has no bg_label", i)
		}
	}
	return tissues, nil
}

// ParseColumns decodes a JSON or YAML mapping of column name to metadata.
func ParseColumns(content []byte) (map[string]Column, error) {
	var columns map[string]Column
	if err := yaml.Unmarshal(content, &columns); err != nil {
		return nil, fmt.Errorf("decoding column metadata: %w", err)
	}
	if len(columns) == 0 {
		return nil, errors.New("column metadata table empty")
	}
	for name, col := range columns {
		if !col.Source.Valid() {
			return nil, fmt.Errorf("column %s: unknown source %q", name, col.Source)
		}
		if col.Type == "" {
			return nil, fmt.Errorf("column %s: missing type", name)
		}
	}
	return columns, nil
}

func readOrDefault(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return content, nil
}
