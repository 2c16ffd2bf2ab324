package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"
)

// File formats for the YAML schema document.
type (
	fileSchema struct {
		Tables map[string]*fileTable `yaml:"tables"`
	}

	fileTable struct {
		Name       string                   `yaml:"name"`
		Fields     []fileField              `yaml:"fields"`
		Required   []string                 `yaml:"required"`
		Optional   []string                 `yaml:"optional"`
		PrimaryKey []string                 `yaml:"primaryKey"`
		Relations  map[string]*fileRelation `yaml:"relations"`
	}

	fileField struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}

	fileRelation struct {
		Kind          string `yaml:"kind"`
		Target        string `yaml:"target"`
		ForeignKey    string `yaml:"foreignKey"`
		JunctionTable string `yaml:"junctionTable"`
		RelatedKey    string `yaml:"relatedKey"`
		References    string `yaml:"references"`
		OnDelete      string `yaml:"onDelete"`
		OnUpdate      string `yaml:"onUpdate"`
	}
)

// Load reads a YAML schema document from path and returns the validated
// Schema. A missing file is a fatal load-time error.
func Load(path string) (*Schema, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: reading %s: %w", path, err)
	}
	s, err := Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("schema: parsing %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML schema document and returns the validated Schema.
func Parse(buf []byte) (*Schema, error) {
	var doc fileSchema
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("no tables declared")
	}
	defs := make([]*TableDefinition, 0, len(doc.Tables))
	for key, ft := range doc.Tables {
		def := &TableDefinition{
			Name:       tableName(key, ft.Name),
			Required:   ft.Required,
			Optional:   ft.Optional,
			PrimaryKey: ft.PrimaryKey,
		}
		for _, f := range ft.Fields {
			def.Fields = append(def.Fields, Field{Name: f.Name, Type: Type(f.Type)})
		}
		if len(ft.Relations) > 0 {
			def.Relations = make(map[string]*Relation, len(ft.Relations))
			for name, fr := range ft.Relations {
				kind, err := parseKind(fr.Kind)
				if err != nil {
					return nil, fmt.Errorf("table %q relation %q: %w", def.Name, name, err)
				}
				def.Relations[name] = &Relation{
					Kind:          kind,
					Target:        fr.Target,
					ForeignKey:    fr.ForeignKey,
					JunctionTable: fr.JunctionTable,
					RelatedKey:    fr.RelatedKey,
					References:    fr.References,
					OnDelete:      fr.OnDelete,
					OnUpdate:      fr.OnUpdate,
				}
			}
		}
		defs = append(defs, def)
	}
	return New(defs...)
}

// tableName resolves the physical table name: an explicit name wins,
// otherwise the document key is snake-cased and pluralized, so a "BlogPost"
// key becomes "blog_posts" and an already-plural "users" stays "users".
func tableName(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return inflect.Pluralize(inflect.Underscore(key))
}

// parseKind normalizes the relation kind, accepting camelCase, snake_case
// and kebab-case spellings.
func parseKind(raw string) (Kind, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(raw))
	switch norm {
	case "hasmany":
		return HasMany, nil
	case "hasone":
		return HasOne, nil
	case "belongsto":
		return BelongsTo, nil
	case "manytomany":
		return ManyToMany, nil
	}
	return "", fmt.Errorf("unknown relation kind %q", raw)
}
