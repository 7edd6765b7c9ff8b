package contacts

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TitleSets holds the title filters used by the search strategies, loadable
// from a YAML file so the chain can be retuned without a rebuild.
type TitleSets struct {
	Executive []string `yaml:"executive"`
	Manager   []string `yaml:"manager"`
	Fallback  []string `yaml:"fallback"`
}

// DefaultTitleSets returns the built-in title filters.
func DefaultTitleSets() TitleSets {
	return TitleSets{
		Executive: []string{"marketing", "growth", "revenue", "sales", "ceo", "founder", "diretor"},
		Manager:   []string{"manager", "gerente", "head"},
		Fallback:  []string{"CEO", "CMO", "Founder", "Marketing", "Growth"},
	}
}

// LoadTitleSets reads title filters from a YAML file. Missing sections keep
// their defaults.
func LoadTitleSets(path string) (TitleSets, error) {
	sets := DefaultTitleSets()
	if path == "" {
		return sets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sets, eris.Wrapf(err, "contacts: read title sets %s", path)
	}
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return sets, eris.Wrapf(err, "contacts: parse title sets %s", path)
	}
	return sets, nil
}
