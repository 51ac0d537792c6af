package progress

import (
	"math"
	"testing"

	"github.com/claude/bilbotrack/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// TestUnitConversionRoundTrip verifies FromKg(ToKg(x)) returns x within
// floating tolerance for both unit systems.
func TestUnitConversionRoundTrip(t *testing.T) {
	values := []float64{0, 1, 2.5, 52.5, 100, 142.7, 300}
	for _, units := range []models.Units{models.UnitsKg, models.UnitsLb} {
		for _, v := range values {
			got := FromKg(ToKg(v, units), units)
			if !almostEqual(got, v) {
				t.Errorf("FromKg(ToKg(%v, %s)) = %v, want %v", v, units, got, v)
			}
		}
	}
}

func TestToKg(t *testing.T) {
	if got := ToKg(100, models.UnitsKg); got != 100 {
		t.Errorf("ToKg(100, kg) = %v, want 100", got)
	}
	got := ToKg(220.462, models.UnitsLb)
	if !almostEqual(got, 100) {
		t.Errorf("ToKg(220.462, lb) = %v, want ~100", got)
	}
}

func TestRoundToStep(t *testing.T) {
	tests := []struct {
		name string
		kg   float64
		step float64
		want float64
	}{
		{"exact multiple", 50, 2.5, 50},
		{"round down", 50.9, 2.5, 50},
		{"round up", 51.6, 2.5, 52.5},
		{"tie rounds up", 51.25, 2.5, 52.5},
		{"tie rounds up whole step", 2.5, 5, 5},
		{"zero step is identity", 51.3, 0, 51.3},
		{"negative step is identity", 51.3, -1, 51.3},
		{"zero value", 0, 2.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundToStep(tt.kg, tt.step); !almostEqual(got, tt.want) {
				t.Errorf("RoundToStep(%v, %v) = %v, want %v", tt.kg, tt.step, got, tt.want)
			}
		})
	}
}

// TestRoundToStepMultiple verifies results for positive steps are always whole
// multiples of the step.
func TestRoundToStepMultiple(t *testing.T) {
	for _, kg := range []float64{0.1, 13.7, 49.99, 51.25, 87.3, 120} {
		got := RoundToStep(kg, 2.5)
		ratio := got / 2.5
		if math.Abs(ratio-math.Round(ratio)) > 1e-6 {
			t.Errorf("RoundToStep(%v, 2.5) = %v, not a multiple of 2.5", kg, got)
		}
	}
}

func TestWork(t *testing.T) {
	if got := Work(50, 10); got != 500 {
		t.Errorf("Work(50, 10) = %v, want 500", got)
	}
	if got := Work(0, 10); got != 0 {
		t.Errorf("Work(0, 10) = %v, want 0", got)
	}
}

func TestEstimate1RM(t *testing.T) {
	// One rep returns the load unchanged.
	if got := Estimate1RM(100, 1); got != 100 {
		t.Errorf("Estimate1RM(100, 1) = %v, want 100", got)
	}
	if got := Estimate1RM(100, 0); got != 100 {
		t.Errorf("Estimate1RM(100, 0) = %v, want 100", got)
	}

	// Epley: 50 * (1 + 10/30) = 66.666...
	if got := Estimate1RM(50, 10); !almostEqual(got, 50*(1+10.0/30)) {
		t.Errorf("Estimate1RM(50, 10) = %v, want %v", got, 50*(1+10.0/30))
	}

	// Strictly increasing in reps.
	prev := Estimate1RM(80, 1)
	for reps := 2; reps <= 30; reps++ {
		cur := Estimate1RM(80, reps)
		if cur <= prev {
			t.Fatalf("Estimate1RM(80, %d) = %v, not greater than %v", reps, cur, prev)
		}
		prev = cur
	}
}

func TestSuggestedLoad(t *testing.T) {
	load := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		baseRM    float64
		last      *float64
		increment float64
		step      float64
		want      float64
	}{
		{"first session is half base", 100, nil, 2.5, 2.5, 50},
		{"first session rounds to step", 105, nil, 2.5, 2.5, 52.5},
		{"subsequent adds increment", 100, load(50), 2.5, 2.5, 52.5},
		{"subsequent rounds to step", 100, load(51), 2, 2.5, 52.5},
		{"no rounding when step zero", 100, load(51.3), 2, 0, 53.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuggestedLoad(tt.baseRM, tt.last, tt.increment, tt.step)
			if !almostEqual(got, tt.want) {
				t.Errorf("SuggestedLoad(%v, %v, %v, %v) = %v, want %v",
					tt.baseRM, tt.last, tt.increment, tt.step, got, tt.want)
			}
		})
	}
}

// TestPhaseForNewSession verifies the one-way bilbo-to-strength ratchet: any
// prior session under 15 reps pushes all new sessions into strength.
func TestPhaseForNewSession(t *testing.T) {
	session := func(reps int) models.Session { return models.Session{Reps: reps} }

	tests := []struct {
		name  string
		prior []models.Session
		want  models.Phase
	}{
		{"empty cycle starts bilbo", nil, models.PhaseBilbo},
		{"all high reps stay bilbo", []models.Session{session(20), session(16), session(15)}, models.PhaseBilbo},
		{"one low-rep session ratchets", []models.Session{session(20), session(14)}, models.PhaseStrength},
		{"ratchet holds after later high reps", []models.Session{session(12), session(22)}, models.PhaseStrength},
		{"exactly 15 is still bilbo", []models.Session{session(15)}, models.PhaseBilbo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseForNewSession(tt.prior); got != tt.want {
				t.Errorf("PhaseForNewSession = %s, want %s", got, tt.want)
			}
		})
	}
}
