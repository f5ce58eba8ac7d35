package scorer

import "testing"

func TestClassifyAccumulation(t *testing.T) {
	if tag := classify(true, 1, 0.7); tag != PatternAccumulation {
		t.Fatalf("got %v, want Accumulation", tag)
	}
}

func TestClassifyMomentum(t *testing.T) {
	if tag := classify(false, 6, 0.8); tag != PatternMomentum {
		t.Fatalf("got %v, want Momentum", tag)
	}
}

func TestClassifyDistribution(t *testing.T) {
	if tag := classify(false, -3, 0.2); tag != PatternDistribution {
		t.Fatalf("got %v, want Distribution", tag)
	}
}

func TestClassifyWashout(t *testing.T) {
	if tag := classify(false, -6, 0.9); tag != PatternWashout {
		t.Fatalf("got %v, want Washout", tag)
	}
}

func TestClassifyNoiseDefault(t *testing.T) {
	if tag := classify(false, 0, 0.5); tag != PatternNoise {
		t.Fatalf("got %v, want Noise", tag)
	}
}

func TestConfidenceTiers(t *testing.T) {
	if tier := confidenceTier(50, 48, 0); tier != ConfidenceHigh {
		t.Fatalf("got %v, want High", tier)
	}
	if tier := confidenceTier(0, 0, 1); tier != ConfidenceLow {
		t.Fatalf("got %v, want Low", tier)
	}
}

func TestPresenceFractionCountsAboveEpsilonOnly(t *testing.T) {
	if f := presenceFraction(0.005, 5, -5); f != 2.0/3 {
		t.Fatalf("presenceFraction = %v, want 2/3", f)
	}
}

func TestClampRangeBounds(t *testing.T) {
	if clampRange(-1, 0, 10) != 0 {
		t.Fatalf("expected lower clamp")
	}
	if clampRange(11, 0, 10) != 10 {
		t.Fatalf("expected upper clamp")
	}
}
