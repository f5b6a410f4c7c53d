package growth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is a Source backed by a YAML document.
type Catalog struct {
	plants       map[string]Plant
	varieties    map[string]PlantVariety
	instructions map[string]GrowInstruction
}

type catalogFile struct {
	Plants []struct {
		Plant            `yaml:",inline"`
		Varieties        []PlantVariety    `yaml:"varieties"`
		GrowInstructions []GrowInstruction `yaml:"grow_instructions"`
	} `yaml:"plants"`
}

// NewCatalog returns an empty catalog. Every lookup reports ErrNotFound.
func NewCatalog() *Catalog {
	return &Catalog{
		plants:       map[string]Plant{},
		varieties:    map[string]PlantVariety{},
		instructions: map[string]GrowInstruction{},
	}
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	c := NewCatalog()
	for _, p := range f.Plants {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog plant without id")
		}
		if _, dup := c.plants[p.ID]; dup {
			return nil, fmt.Errorf("catalog plant %s defined twice", p.ID)
		}
		c.plants[p.ID] = p.Plant
		for _, v := range p.Varieties {
			v.PlantID = p.ID
			c.varieties[key(p.ID, v.ID)] = v
		}
		for _, gi := range p.GrowInstructions {
			gi.PlantID = p.ID
			c.instructions[key(p.ID, gi.ID)] = gi
		}
	}
	return c, nil
}

func key(parts ...string) string {
	return strings.Join(parts, "/")
}

func (c *Catalog) GetPlant(_ context.Context, plantID string) (Plant, error) {
	p, ok := c.plants[plantID]
	if !ok {
		return Plant{}, fmt.Errorf("plant %s: %w", plantID, ErrNotFound)
	}
	return p, nil
}

func (c *Catalog) GetPlantVariety(_ context.Context, plantID, varietyID string) (PlantVariety, error) {
	v, ok := c.varieties[key(plantID, varietyID)]
	if !ok {
		return PlantVariety{}, fmt.Errorf("variety %s/%s: %w", plantID, varietyID, ErrNotFound)
	}
	return v, nil
}

func (c *Catalog) GetGrowInstruction(_ context.Context, plantID, growInstructionID string) (GrowInstruction, error) {
	gi, ok := c.instructions[key(plantID, growInstructionID)]
	if !ok {
		return GrowInstruction{}, fmt.Errorf("grow instruction %s/%s: %w", plantID, growInstructionID, ErrNotFound)
	}
	return gi, nil
}
