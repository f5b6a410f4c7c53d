package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Defaults.SeedlingFertilizeFrequencyWeeks != 5 {
		t.Fatalf("seedling fertilize weeks = %d, want 5", cfg.Defaults.SeedlingFertilizeFrequencyWeeks)
	}
	if cfg.Growth.CacheTTL != 10*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Growth.CacheTTL)
	}
	if !cfg.Tasks.UpsertOpenSystemTasks {
		t.Fatalf("upsert guard should default on")
	}
}

func TestFromYAMLKeepsUnsetDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("dispatch:\n  concurrency: 1\ndefaults:\n  harden_off_lead_days: 10\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Dispatch.Concurrency != 1 || cfg.Defaults.HardenOffLeadDays != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Defaults.DaysToSproutMax != 14 {
		t.Fatalf("default lost: %d", cfg.Defaults.DaysToSproutMax)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"both sources":   "growth:\n  catalog: a.yml\n  endpoint: http://x\n",
		"concurrency":    "dispatch:\n  concurrency: 0\n",
		"sprout order":   "defaults:\n  days_to_sprout_min: 9\n  days_to_sprout_max: 3\n",
		"log level":      "log:\n  level: loud\n",
		"webhook no url": "webhooks:\n  - events: [PlantHarvestCycleSeeded]\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadResolvesCatalogRelativeToWorkspace(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("growth:\n  catalog: plants.yml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Growth.Catalog != filepath.Join(dir, "plants.yml") {
		t.Fatalf("catalog = %s", cfg.Growth.Catalog)
	}

	empty, err := Load(t.TempDir())
	if err != nil || empty == nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
}
