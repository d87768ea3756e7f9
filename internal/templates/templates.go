// Package templates loads the catalog of editor templates: bundles of text
// layers, emoji layers and a global filter that the editor inserts into a
// project.
package templates

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"reel-editor/internal/layer"
)

//go:embed catalog.yaml
var builtin []byte

var ErrTemplateNotFound = errors.New("template not found")

// Template ids in a bundle are only informative; the editor assigns fresh
// ids to every inserted layer.
type Template struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Category     string  `json:"category" yaml:"category"`
	Thumbnail    string  `json:"thumbnail,omitempty" yaml:"thumbnail"`
	TextLayers   []Text  `json:"textLayers,omitempty" yaml:"textLayers"`
	EmojiLayers  []Emoji `json:"emojiLayers,omitempty" yaml:"emojiLayers"`
	GlobalFilter *Filter `json:"globalFilter,omitempty" yaml:"globalFilter"`
}

// Filter is a catalog global filter. Keys it omits keep their defaults.
type Filter layer.VideoFilter

func (f *Filter) UnmarshalYAML(n *yaml.Node) error {
	type plain layer.VideoFilter
	v := plain(layer.DefaultFilter())
	if err := n.Decode(&v); err != nil {
		return err
	}
	*f = Filter(v)
	return nil
}

// VideoFilter returns a copy of the bundle's filter, or nil.
func (t Template) VideoFilter() *layer.VideoFilter {
	if t.GlobalFilter == nil {
		return nil
	}
	f := layer.VideoFilter(*t.GlobalFilter)
	return &f
}

type Text struct {
	Content   string               `json:"content" yaml:"content"`
	Start     float64              `json:"start" yaml:"start"`
	End       float64              `json:"end" yaml:"end"`
	Position  *layer.Position      `json:"position,omitempty" yaml:"position"`
	Scale     float64              `json:"scale,omitempty" yaml:"scale"`
	Rotation  float64              `json:"rotation,omitempty" yaml:"rotation"`
	Style     *layer.TextStyle     `json:"style,omitempty" yaml:"style"`
	Animation *layer.TextAnimation `json:"animation,omitempty" yaml:"animation"`
}

type Emoji struct {
	Type     layer.EmojiType `json:"type" yaml:"type"`
	Content  string          `json:"content" yaml:"content"`
	Start    float64         `json:"start" yaml:"start"`
	End      float64         `json:"end" yaml:"end"`
	Position *layer.Position `json:"position,omitempty" yaml:"position"`
	Scale    float64         `json:"scale,omitempty" yaml:"scale"`
	Rotation float64         `json:"rotation,omitempty" yaml:"rotation"`
}

// Layers materialises the bundle for a project of the given duration.
// Layer ids are left empty. A missing end runs to the end of the project.
func (t Template) Layers(duration float64) ([]layer.TextLayer, []layer.EmojiLayer) {
	texts := make([]layer.TextLayer, 0, len(t.TextLayers))
	for _, s := range t.TextLayers {
		l := layer.TextLayer{
			Content:  s.Content,
			Start:    s.Start,
			End:      endOr(s.Start, s.End, duration),
			Position: positionOr(s.Position),
			Scale:    scaleOr(s.Scale),
			Rotation: s.Rotation,
			Style:    layer.DefaultTextStyle(),
		}
		if s.Style != nil {
			l.Style = s.Style.Clone()
		}
		if s.Animation != nil {
			a := *s.Animation
			l.Animation = &a
		}
		l.ApplyDefaults()
		texts = append(texts, l)
	}
	emojis := make([]layer.EmojiLayer, 0, len(t.EmojiLayers))
	for _, s := range t.EmojiLayers {
		l := layer.EmojiLayer{
			Type:     s.Type,
			Content:  s.Content,
			Start:    s.Start,
			End:      endOr(s.Start, s.End, duration),
			Position: positionOr(s.Position),
			Scale:    scaleOr(s.Scale),
			Rotation: s.Rotation,
		}
		l.ApplyDefaults()
		emojis = append(emojis, l)
	}
	return texts, emojis
}

func endOr(start, end, duration float64) float64 {
	if end > start {
		return end
	}
	return duration
}

func positionOr(p *layer.Position) layer.Position {
	if p == nil {
		return layer.DefaultPosition
	}
	return *p
}

func scaleOr(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}

type file struct {
	Templates []Template `yaml:"templates"`
}

type Catalog struct {
	templates []Template
	byID      map[string]int
}

// Parse decodes a catalog document. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(f.Templates))}
	for i, t := range f.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %d: id is required", i)
		}
		if t.Name == "" {
			return nil, fmt.Errorf("template %q: name is required", t.ID)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", t.ID)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

// Load reads the catalog at path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(builtin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}
	return Parse(data)
}

func (c *Catalog) Get(id string) (Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return c.templates[i], nil
}

// List returns the templates of category, or all of them for "", sorted
// by name.
func (c *Catalog) List(category string) []Template {
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Len() int { return len(c.templates) }
