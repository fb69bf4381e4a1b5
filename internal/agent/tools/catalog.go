// Package tools discovers the tool provider's operations, caches them for the
// process lifetime and invokes them over HTTP.
package tools

import (
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
)

// Descriptor is one callable operation of the tool provider.
type Descriptor struct {
	Name        string
	Description string
	Method      string
	Path        string
	// Schema is the cleaned input schema; Info is its eino rendering.
	Schema *openapi3.Schema
	Info   *schema.ToolInfo
}

// Catalog is an immutable set of descriptors. A new Catalog replaces the old
// one wholesale on refresh.
type Catalog struct {
	descriptors []Descriptor
	byName      map[string]int
	loadedAt    time.Time
}

func NewCatalog(descriptors []Descriptor) *Catalog {
	c := &Catalog{
		descriptors: descriptors,
		byName:      make(map[string]int, len(descriptors)),
		loadedAt:    time.Now(),
	}
	for i, d := range descriptors {
		c.byName[d.Name] = i
	}
	return c
}

func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return c.descriptors[i], true
}

func (c *Catalog) Len() int {
	return len(c.descriptors)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.descriptors))
	for i, d := range c.descriptors {
		names[i] = d.Name
	}
	return names
}

// Select returns the descriptors named in allowed, in catalog order. An empty
// allow list selects everything. Names the provider does not expose are
// ignored.
func (c *Catalog) Select(allowed []string) []Descriptor {
	if len(allowed) == 0 {
		out := make([]Descriptor, len(c.descriptors))
		copy(out, c.descriptors)
		return out
	}
	want := make(map[string]bool, len(allowed))
	for _, n := range allowed {
		want[n] = true
	}
	var out []Descriptor
	for _, d := range c.descriptors {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// Infos returns the eino tool schemas for the selected descriptors.
func (c *Catalog) Infos(allowed []string) []*schema.ToolInfo {
	selected := c.Select(allowed)
	infos := make([]*schema.ToolInfo, 0, len(selected))
	for _, d := range selected {
		if d.Info != nil {
			infos = append(infos, d.Info)
		}
	}
	return infos
}
