package lifecycle_test

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"growline/internal/domain"
	"growline/internal/lifecycle"
)

type mutation struct {
	name  string
	apply func(c *lifecycle.HarvestCycle, id string, d time.Time) error
}

var mutations = []mutation{
	{"seed", func(c *lifecycle.HarvestCycle, id string, d time.Time) error { return c.MarkSeeded(id, d, 0) }},
	{"germinate", func(c *lifecycle.HarvestCycle, id string, d time.Time) error { return c.MarkGerminated(id, d, 0) }},
	{"transplant", func(c *lifecycle.HarvestCycle, id string, d time.Time) error { return c.MarkTransplanted(id, d, 0) }},
	{"harvest", func(c *lifecycle.HarvestCycle, id string, d time.Time) error { return c.MarkHarvested(id, d) }},
	{"complete", func(c *lifecycle.HarvestCycle, id string, d time.Time) error { return c.MarkCompleted(id, d, 0, 0) }},
	{"notes", func(c *lifecycle.HarvestCycle, id string, d time.Time) error {
		p, _ := c.Plant(id)
		u := p.Values()
		u.Notes = d.Format(time.DateOnly)
		return c.UpdatePlant(id, u)
	}},
}

// Within one command every trigger appears at most once per entity, and
// replaying the resulting values records nothing.
func TestTriggerFiresAtMostOncePerEntity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c, err := lifecycle.New(lifecycle.NewHarvestCycle{Name: "prop", StartDate: day0})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		var ids []string
		for _, plantID := range []string{"tomato", "pepper"} {
			p, err := c.AddPlant(lifecycle.NewPlant{PlantID: plantID, PlantingMethod: domain.SeedIndoors})
			if err != nil {
				t.Fatalf("add plant: %v", err)
			}
			ids = append(ids, p.ID)
		}
		c.DrainEvents(day0)

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			m := rapid.SampledFrom(mutations).Draw(t, "mutation")
			id := rapid.SampledFrom(ids).Draw(t, "plant")
			offset := rapid.IntRange(0, 3).Draw(t, "day")
			if err := m.apply(c, id, day0.AddDate(0, 0, offset)); err != nil {
				t.Fatalf("%s: %v", m.name, err)
			}
		}

		seen := map[string]bool{}
		for _, ev := range c.DrainEvents(day0) {
			key := string(ev.Trigger) + "/" + ev.EntityID()
			if seen[key] {
				t.Fatalf("trigger %s recorded twice for %s", ev.Trigger, ev.EntityID())
			}
			seen[key] = true
		}

		for _, id := range ids {
			p, _ := c.Plant(id)
			if err := c.UpdatePlant(id, p.Values()); err != nil {
				t.Fatalf("replay: %v", err)
			}
		}
		if pending := c.Pending(); len(pending) != 0 {
			t.Fatalf("replaying unchanged values recorded %d events", len(pending))
		}
	})
}
