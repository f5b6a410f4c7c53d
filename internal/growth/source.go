// Package growth supplies agronomic parameters per plant, variety and grow instruction.
package growth

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("growth parameters not found")

// Source is the read-only catalog the task generators consult.
type Source interface {
	GetGrowInstruction(ctx context.Context, plantID, growInstructionID string) (GrowInstruction, error)
	GetPlant(ctx context.Context, plantID string) (Plant, error)
	GetPlantVariety(ctx context.Context, plantID, varietyID string) (PlantVariety, error)
}

type Plant struct {
	ID                string `yaml:"id" json:"id"`
	Name              string `yaml:"name" json:"name"`
	DaysToMaturityMin int    `yaml:"days_to_maturity_min" json:"days_to_maturity_min"`
	DaysToMaturityMax int    `yaml:"days_to_maturity_max" json:"days_to_maturity_max"`
}

type PlantVariety struct {
	ID                string `yaml:"id" json:"id"`
	PlantID           string `yaml:"plant_id" json:"plant_id"`
	Name              string `yaml:"name" json:"name"`
	DaysToMaturityMin int    `yaml:"days_to_maturity_min" json:"days_to_maturity_min"`
	DaysToMaturityMax int    `yaml:"days_to_maturity_max" json:"days_to_maturity_max"`
}

// GrowInstruction is one way of growing a plant. Zero values mean "not specified".
type GrowInstruction struct {
	ID                                     string `yaml:"id" json:"id"`
	PlantID                                string `yaml:"plant_id" json:"plant_id"`
	Name                                   string `yaml:"name" json:"name"`
	DaysToSproutMin                        int    `yaml:"days_to_sprout_min" json:"days_to_sprout_min"`
	DaysToSproutMax                        int    `yaml:"days_to_sprout_max" json:"days_to_sprout_max"`
	FertilizeFrequencyInWeeks              int    `yaml:"fertilize_frequency_in_weeks" json:"fertilize_frequency_in_weeks"`
	FertilizerForSeedlingsFrequencyInWeeks int    `yaml:"fertilizer_for_seedlings_frequency_in_weeks" json:"fertilizer_for_seedlings_frequency_in_weeks"`
	Fertilizer                             string `yaml:"fertilizer" json:"fertilizer,omitempty"`
	FertilizerForSeedlings                 string `yaml:"fertilizer_for_seedlings" json:"fertilizer_for_seedlings,omitempty"`
}
