package dialect

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/token"
)

const Default = "default"

//go:embed resources/*.yaml
var resources embed.FS

// document is the on-disk form of a dialect: surface spelling -> kind name.
type document struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Entries     map[string]string `yaml:"entries" json:"entries"`
}

func (d document) table(fallbackName string) (*Table, error) {
	name := d.Name
	if name == "" {
		name = fallbackName
	}
	entries := make(map[string]token.Kind, len(d.Entries))
	for surface, kindName := range d.Entries {
		kind, ok := token.ParseKind(kindName)
		if !ok {
			return nil, invalid(name, "unknown token kind %q for %q", kindName, surface)
		}
		entries[surface] = kind
	}
	t, err := New(name, entries)
	if err != nil {
		return nil, err
	}
	t.Description = d.Description
	return t, nil
}

var (
	builtinOnce   sync.Once
	builtinTables map[string]*Table
	builtinErr    error
)

func loadBuiltins() {
	builtinTables = make(map[string]*Table)
	files, err := resources.ReadDir("resources")
	if err != nil {
		builtinErr = err
		return
	}
	for _, f := range files {
		data, err := resources.ReadFile(path.Join("resources", f.Name()))
		if err != nil {
			builtinErr = err
			return
		}
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			builtinErr = fmt.Errorf("dialect resource %s: %w", f.Name(), err)
			return
		}
		t, err := doc.table(strings.TrimSuffix(f.Name(), ".yaml"))
		if err != nil {
			builtinErr = err
			return
		}
		builtinTables[t.Name] = t
	}
}

// Load returns the embedded dialect called name.
func Load(name string) (*Table, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}
	t, ok := builtinTables[name]
	if !ok {
		return nil, &diag.Error{
			Kind: diag.DialectError, Code: diag.CodeDialectNotFound,
			Msg: fmt.Sprintf("dialect %q not found (available: %s)", name, strings.Join(Names(), ", ")),
		}
	}
	return t, nil
}

// MustLoad is Load for the embedded dialects, which are validated by tests.
func MustLoad(name string) *Table {
	t, err := Load(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Names lists the embedded dialects in sorted order.
func Names() []string {
	builtinOnce.Do(loadBuiltins)
	names := make([]string, 0, len(builtinTables))
	for n := range builtinTables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads a user dialect from a .json, .yaml or .yml file.
func LoadFile(filename string) (*Table, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading dialect file: %w", err)
	}
	return Parse(filepath.Base(filename), data)
}

// Parse decodes a dialect document; the format is picked by the extension
// of filename.
func Parse(filename string, data []byte) (*Table, error) {
	var doc document
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("dialect %s: %w", filename, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("dialect %s: %w", filename, err)
		}
	default:
		return nil, invalid(filename, "unsupported dialect file extension %q", ext)
	}
	return doc.table(strings.TrimSuffix(filename, ext))
}
