package recommend

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// Tables holds every constant the value model uses. Zero fields in an
// override keep the defaults.
type Tables struct {
	ReplacementRanks       map[models.Position]int       `yaml:"replacement_ranks"`
	DefaultReplacementRank int                           `yaml:"default_replacement_rank"`
	Scarcity               map[models.Position][]float64 `yaml:"scarcity"` // one multiplier per round band
	TierSizes              map[models.Position][]int     `yaml:"tier_sizes"`
	Need                   NeedMultipliers               `yaml:"need"`
	DefaultTopK            int                           `yaml:"default_top_k"`
}

// NeedMultipliers scale value by how badly the roster needs the position.
type NeedMultipliers struct {
	Filled      float64 `yaml:"filled"`
	Normal      float64 `yaml:"normal"`
	Urgent      float64 `yaml:"urgent"`
	LateRound   int     `yaml:"late_round"` // rounds after this one are "late"
	LateKickDEF float64 `yaml:"late_k_def"`
	LateNonFlex float64 `yaml:"late_non_flex"`
}

// Round bands for the scarcity table: rounds 1-6, 7-12, 13+.
const (
	earlyBandEnd = 6
	midBandEnd   = 12
)

func DefaultTables() Tables {
	return Tables{
		ReplacementRanks: map[models.Position]int{
			models.PositionQB:  15,
			models.PositionRB:  36,
			models.PositionWR:  48,
			models.PositionTE:  15,
			models.PositionK:   15,
			models.PositionDEF: 15,
		},
		DefaultReplacementRank: 24,
		Scarcity: map[models.Position][]float64{
			models.PositionQB:  {0.9, 1.05, 0.95},
			models.PositionRB:  {1.2, 1.05, 0.9},
			models.PositionWR:  {1.1, 1.05, 0.95},
			models.PositionTE:  {1.0, 1.1, 0.9},
			models.PositionK:   {0.5, 0.7, 1.3},
			models.PositionDEF: {0.5, 0.8, 1.3},
		},
		TierSizes: map[models.Position][]int{
			models.PositionQB:  {3, 6, 6, 9},
			models.PositionRB:  {6, 8, 10, 12},
			models.PositionWR:  {6, 10, 12, 14},
			models.PositionTE:  {3, 5, 6, 8},
			models.PositionK:   {4, 6, 8},
			models.PositionDEF: {4, 6, 8},
		},
		Need: NeedMultipliers{
			Filled:      0.7,
			Normal:      1.0,
			Urgent:      1.3,
			LateRound:   10,
			LateKickDEF: 1.2,
			LateNonFlex: 0.9,
		},
		DefaultTopK: 20,
	}
}

// Merge returns t with every non-zero field of o applied on top.
func (t Tables) Merge(o Tables) Tables {
	out := t.clone()
	for pos, rank := range o.ReplacementRanks {
		out.ReplacementRanks[pos] = rank
	}
	if o.DefaultReplacementRank > 0 {
		out.DefaultReplacementRank = o.DefaultReplacementRank
	}
	for pos, bands := range o.Scarcity {
		out.Scarcity[pos] = append([]float64(nil), bands...)
	}
	for pos, sizes := range o.TierSizes {
		out.TierSizes[pos] = append([]int(nil), sizes...)
	}
	if o.Need.Filled > 0 {
		out.Need.Filled = o.Need.Filled
	}
	if o.Need.Normal > 0 {
		out.Need.Normal = o.Need.Normal
	}
	if o.Need.Urgent > 0 {
		out.Need.Urgent = o.Need.Urgent
	}
	if o.Need.LateRound > 0 {
		out.Need.LateRound = o.Need.LateRound
	}
	if o.Need.LateKickDEF > 0 {
		out.Need.LateKickDEF = o.Need.LateKickDEF
	}
	if o.Need.LateNonFlex > 0 {
		out.Need.LateNonFlex = o.Need.LateNonFlex
	}
	if o.DefaultTopK > 0 {
		out.DefaultTopK = o.DefaultTopK
	}
	return out
}

func (t Tables) clone() Tables {
	out := t
	out.ReplacementRanks = make(map[models.Position]int, len(t.ReplacementRanks))
	for k, v := range t.ReplacementRanks {
		out.ReplacementRanks[k] = v
	}
	out.Scarcity = make(map[models.Position][]float64, len(t.Scarcity))
	for k, v := range t.Scarcity {
		out.Scarcity[k] = append([]float64(nil), v...)
	}
	out.TierSizes = make(map[models.Position][]int, len(t.TierSizes))
	for k, v := range t.TierSizes {
		out.TierSizes[k] = append([]int(nil), v...)
	}
	return out
}

// Validate rejects tables the engine cannot use.
func (t Tables) Validate() error {
	var errs []error
	for pos, bands := range t.Scarcity {
		if len(bands) != 3 {
			errs = append(errs, fmt.Errorf("scarcity for %s needs 3 round bands, got %d", pos, len(bands)))
		}
	}
	for pos, rank := range t.ReplacementRanks {
		if rank < 1 {
			errs = append(errs, fmt.Errorf("replacement rank for %s must be positive", pos))
		}
	}
	for pos, sizes := range t.TierSizes {
		for _, size := range sizes {
			if size < 1 {
				errs = append(errs, fmt.Errorf("tier sizes for %s must be positive", pos))
				break
			}
		}
	}
	if t.DefaultReplacementRank < 1 {
		errs = append(errs, errors.New("default replacement rank must be positive"))
	}
	return errors.Join(errs...)
}

// ParseTables merges YAML overrides onto the defaults.
func ParseTables(data []byte) (Tables, error) {
	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Tables{}, fmt.Errorf("failed to parse recommendation tables: %w", err)
	}
	t := DefaultTables().Merge(override)
	if err := t.Validate(); err != nil {
		return Tables{}, fmt.Errorf("invalid recommendation tables: %w", err)
	}
	return t, nil
}
