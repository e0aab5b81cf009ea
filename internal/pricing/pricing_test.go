package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"routesheet-backend/internal/apperr"
)

func TestComputeTotal(t *testing.T) {
	testCases := []struct {
		name   string
		counts StageCounts
		want   string
	}{
		{"empty sheet", StageCounts{}, "0"},
		{"all stages", StageCounts{VTK: 10, Soldering: 8, Lacquering: 7, Stamping: 100, FuseSoldering: 15}, "511"},
		{"vtk missing", StageCounts{Soldering: 8, Lacquering: 7, Stamping: 100, FuseSoldering: 15}, "361"},
		{"fractional stamping", StageCounts{Stamping: 3}, "0.75"},
		{"single soldering", StageCounts{Soldering: 1}, "27"},
		{"negative count ignored", StageCounts{VTK: -4, FuseSoldering: 2}, "2"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotal(tc.counts)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("Expected total %s, got %s", tc.want, got)
			}
		})
	}
}

func TestComputeTotal_MatchesFormula(t *testing.T) {
	for vtk := 0; vtk < 5; vtk++ {
		for sold := 0; sold < 5; sold++ {
			for stamp := 0; stamp < 9; stamp++ {
				c := StageCounts{VTK: vtk, Soldering: sold, Lacquering: vtk + 1, Stamping: stamp, FuseSoldering: sold * 2}
				want := decimal.NewFromInt(int64(15*vtk + 27*sold + 15*(vtk+1) + 2*sold)).
					Add(decimal.RequireFromString("0.25").Mul(decimal.NewFromInt(int64(stamp))))
				if got := ComputeTotal(c); !got.Equal(want) {
					t.Fatalf("counts %+v: expected %s, got %s", c, want, got)
				}
				if ComputeTotal(c).IsNegative() {
					t.Fatalf("counts %+v produced a negative total", c)
				}
			}
		}
	}
}

func TestStageCounts_Validate(t *testing.T) {
	if err := (StageCounts{VTK: 1, Stamping: 40}).Validate(); err != nil {
		t.Fatalf("Expected valid counts, got %v", err)
	}

	err := StageCounts{Lacquering: -1}.Validate()
	if !apperr.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if err.Error() != "lacquering_count: count cannot be negative, got -1" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestStageCounts_Units(t *testing.T) {
	c := StageCounts{VTK: 2, Soldering: 3, Lacquering: 0, Stamping: 10, FuseSoldering: 5}
	if got := c.Units(); got != 20 {
		t.Errorf("Expected 20 units, got %d", got)
	}
}

func TestParseStage(t *testing.T) {
	for _, s := range Stages() {
		got, err := ParseStage(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStage(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStage("painting"); !apperr.IsValidation(err) {
		t.Errorf("Expected validation error for unknown stage, got %v", err)
	}
}
