// Package pricing turns the unit counts of a route sheet into the amount earned.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"routesheet-backend/internal/apperr"
)

type Stage string

const (
	StageVTK           Stage = "vtk"
	StageSoldering     Stage = "soldering"
	StageLacquering    Stage = "lacquering"
	StageStamping      Stage = "stamping"
	StageFuseSoldering Stage = "fuse_soldering"
)

var stages = []Stage{StageVTK, StageSoldering, StageLacquering, StageStamping, StageFuseSoldering}

// Unit prices per stage, in hryvnia.
var prices = map[Stage]decimal.Decimal{
	StageVTK:           decimal.NewFromInt(15),
	StageSoldering:     decimal.NewFromInt(27),
	StageLacquering:    decimal.NewFromInt(15),
	StageStamping:      decimal.RequireFromString("0.25"),
	StageFuseSoldering: decimal.NewFromInt(1),
}

var labels = map[Stage]string{
	StageVTK:           "VTK inspection",
	StageSoldering:     "connector soldering",
	StageLacquering:    "lacquering + battery",
	StageStamping:      "stamping",
	StageFuseSoldering: "fuse soldering",
}

// Stages returns the production stages in shop-floor order.
func Stages() []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return out
}

func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if _, ok := prices[st]; !ok {
		return "", apperr.Invalid("stage", "unknown stage %q", s)
	}
	return st, nil
}

func (s Stage) Price() decimal.Decimal { return prices[s] }

func (s Stage) Label() string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// StageCounts holds the units completed per stage. It is embedded in the
// route sheet row, so the column tags live here.
type StageCounts struct {
	VTK           int `gorm:"column:vtk_count;not null;default:0" json:"vtk_count"`
	Soldering     int `gorm:"column:soldering_count;not null;default:0" json:"soldering_count"`
	Lacquering    int `gorm:"column:lacquering_count;not null;default:0" json:"lacquering_count"`
	Stamping      int `gorm:"column:stamping_count;not null;default:0" json:"stamping_count"`
	FuseSoldering int `gorm:"column:fuse_soldering_count;not null;default:0" json:"fuse_soldering_count"`
}

func (c StageCounts) Count(s Stage) int {
	switch s {
	case StageVTK:
		return c.VTK
	case StageSoldering:
		return c.Soldering
	case StageLacquering:
		return c.Lacquering
	case StageStamping:
		return c.Stamping
	case StageFuseSoldering:
		return c.FuseSoldering
	}
	return 0
}

// Units is the number of operations performed across all stages.
func (c StageCounts) Units() int {
	total := 0
	for _, s := range stages {
		if n := c.Count(s); n > 0 {
			total += n
		}
	}
	return total
}

func (c StageCounts) Validate() error {
	for _, s := range stages {
		if n := c.Count(s); n < 0 {
			return apperr.Invalid(fmt.Sprintf("%s_count", s), "count cannot be negative, got %d", n)
		}
	}
	return nil
}

// ComputeTotal is the sum of count*price over all stages. Negative counts
// contribute nothing.
func ComputeTotal(c StageCounts) decimal.Decimal {
	total := decimal.Zero
	for _, s := range stages {
		n := c.Count(s)
		if n <= 0 {
			continue
		}
		total = total.Add(prices[s].Mul(decimal.NewFromInt(int64(n))))
	}
	return total
}
