package lexicon

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MemoryStore is an in-memory Store, used for tests and as the backing
// shape for the built-in defaults.
type MemoryStore struct {
	Aliases   map[string][]string
	Overrides map[string]string
	Stop      []string
	Entries   map[KeywordTable][]KeywordEntry
	SKU       string
}

func (m *MemoryStore) FieldAliases(ctx context.Context) (map[string][]string, error) {
	return m.Aliases, nil
}

func (m *MemoryStore) VendorOverrides(ctx context.Context) (map[string]string, error) {
	return m.Overrides, nil
}

func (m *MemoryStore) StopWords(ctx context.Context) ([]string, error) {
	return m.Stop, nil
}

func (m *MemoryStore) Keywords(ctx context.Context, table KeywordTable, category Category) ([]KeywordEntry, error) {
	var out []KeywordEntry
	for _, e := range m.Entries[table] {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryStore) SKUPattern(ctx context.Context) (string, error) {
	return m.SKU, nil
}

// yamlKeyword accepts either a bare string or a {keyword, active} mapping.
type yamlKeyword struct {
	Keyword string `yaml:"keyword"`
	Active  *bool  `yaml:"active"`
}

func (k *yamlKeyword) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		k.Keyword = value.Value
		return nil
	}
	type plain yamlKeyword
	return value.Decode((*plain)(k))
}

type yamlFile struct {
	FieldAliases    map[string][]string      `yaml:"field_aliases"`
	VendorOverrides map[string]string        `yaml:"vendor_overrides"`
	StopWords       []string                 `yaml:"stop_words"`
	AllowLists      map[string][]yamlKeyword `yaml:"allow_lists"`
	ItemKeywords    map[string][]yamlKeyword `yaml:"item_keywords"`
	SKUPattern      string                   `yaml:"sku_pattern"`
}

// FileStore reads lexicon configuration from a YAML file.
type FileStore struct {
	doc yamlFile
}

// NewFileStore parses the YAML file at path.
func NewFileStore(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}
	var doc yamlFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse lexicon file %s: %w", path, err)
	}
	return &FileStore{doc: doc}, nil
}

func (f *FileStore) FieldAliases(ctx context.Context) (map[string][]string, error) {
	return f.doc.FieldAliases, nil
}

func (f *FileStore) VendorOverrides(ctx context.Context) (map[string]string, error) {
	return f.doc.VendorOverrides, nil
}

func (f *FileStore) StopWords(ctx context.Context) ([]string, error) {
	return f.doc.StopWords, nil
}

func (f *FileStore) Keywords(ctx context.Context, table KeywordTable, category Category) ([]KeywordEntry, error) {
	var src map[string][]yamlKeyword
	switch table {
	case TableAllowList:
		src = f.doc.AllowLists
	case TableItemKeywords:
		src = f.doc.ItemKeywords
	default:
		return nil, fmt.Errorf("unknown keyword table %q", table)
	}

	var out []KeywordEntry
	for rawCat, keywords := range src {
		if Category(rawCat) != category {
			continue
		}
		for _, k := range keywords {
			active := true
			if k.Active != nil {
				active = *k.Active
			}
			out = append(out, KeywordEntry{Category: category, Keyword: k.Keyword, Active: active})
		}
	}
	return out, nil
}

func (f *FileStore) SKUPattern(ctx context.Context) (string, error) {
	if f.doc.SKUPattern == "" {
		return defaultSKUPattern, nil
	}
	return f.doc.SKUPattern, nil
}
