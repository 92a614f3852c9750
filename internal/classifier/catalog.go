package classifier

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/usherhq/usher/pkg/models"
)

// catalogEntry is the YAML shape of one agent or skill definition.
type catalogEntry struct {
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category"`
	Keywords  []string `yaml:"keywords"`
	Phrases   []string `yaml:"phrases"`
	Fallbacks []string `yaml:"fallbacks"`
}

// catalogFile is the structure of a usher catalog YAML file. Entries with
// names already present in the built-in index replace them; new names are
// appended. Pipelines listed here extend the built-in trigger table.
type catalogFile struct {
	Agents    []catalogEntry              `yaml:"agents"`
	Skills    []catalogEntry              `yaml:"skills"`
	Pipelines []models.PipelineDefinition `yaml:"pipelines"`
}

// Catalog bundles the signal index with any pipeline definitions loaded
// alongside it.
type Catalog struct {
	Index     *Index
	Pipelines []models.PipelineDefinition
}

// DefaultCatalog returns the built-in index with no extra pipelines.
func DefaultCatalog() *Catalog {
	return &Catalog{Index: DefaultIndex()}
}

// LoadCatalog reads a YAML catalog file and merges it over the built-in
// defaults. A missing path yields the defaults without error; a malformed
// file is an error the caller may choose to ignore in favor of defaults.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	entries := defaultEntries()
	entries = mergeEntries(entries, cf.Agents, KindAgent)
	entries = mergeEntries(entries, cf.Skills, KindSkill)

	return &Catalog{
		Index:     NewIndex(entries),
		Pipelines: cf.Pipelines,
	}, nil
}

// mergeEntries replaces same-named entries and appends new ones.
func mergeEntries(entries []Entry, loaded []catalogEntry, kind Kind) []Entry {
	for _, ce := range loaded {
		if ce.Name == "" {
			continue
		}
		e := Entry{
			Name:      ce.Name,
			Kind:      kind,
			Category:  ce.Category,
			Keywords:  ce.Keywords,
			Phrases:   ce.Phrases,
			Fallbacks: ce.Fallbacks,
		}
		replaced := false
		for i := range entries {
			if entries[i].Name == ce.Name && entries[i].Kind == kind {
				entries[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			entries = append(entries, e)
		}
	}
	return entries
}
