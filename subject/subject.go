package subject

// Config describes one supported class subject: its display metadata and
// which analysis capabilities apply to it. The pipeline consults these
// flags to decide the number of steps and whether the grammar stage runs.
type Config struct {
	ID              string
	Name            string
	Icon            string
	VocabLabel      string
	SupportsGrammar bool
	ReportsLevel    bool

	systemRole string
}

const DefaultID = "english"

var registry = map[string]Config{
	"english": {
		ID:              "english",
		Name:            "English Class",
		Icon:            "🇬🇧",
		VocabLabel:      "Vocabulary",
		SupportsGrammar: true,
		ReportsLevel:    true,
		systemRole: "You are an expert English teacher who analyzes class " +
			"transcriptions for a student.",
	},
	"sgbd": {
		ID:              "sgbd",
		Name:            "Databases (SGBD)",
		Icon:            "🗄️",
		VocabLabel:      "Key Terms",
		SupportsGrammar: false,
		ReportsLevel:    false,
		systemRole: "You are a computer science professor specialized in " +
			"database management systems who analyzes lecture transcriptions.",
	},
}

// Lookup returns the configuration for the given subject id, falling back
// to the default subject when the id is unknown or empty.
func Lookup(id string) Config {
	if cfg, ok := registry[id]; ok {
		return cfg
	}
	return registry[DefaultID]
}

// Known reports whether id names a registered subject.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}

// All returns every registered subject, default first.
func All() []Config {
	out := []Config{registry[DefaultID]}
	for id, cfg := range registry {
		if id != DefaultID {
			out = append(out, cfg)
		}
	}
	return out
}

// SystemRole is the system-prompt persona used for every LLM call on this
// subject.
func (c Config) SystemRole() string {
	return c.systemRole
}

// TotalSteps is the number of pipeline stages that run for this subject.
func (c Config) TotalSteps() int {
	if c.SupportsGrammar {
		return 5
	}
	return 4
}
