package collector

import "testing"

func TestScorePerfectLink(t *testing.T) {
	if got := Score(20, 100, 20, 0, true); got != 100 {
		t.Fatalf("expected 100 for a perfect link, got %d", got)
	}
}

func TestScoreDegradedLink(t *testing.T) {
	// worst bucket in every category: 30+25+25+20+10 penalties
	if got := Score(150, 5, 1, 15, false); got != 0 {
		t.Fatalf("expected 0 for a fully degraded link, got %d", got)
	}
}

func TestScoreBuckets(t *testing.T) {
	cases := []struct {
		name                              string
		latency, download, upload, obstr  float64
		snr                               bool
		want                              int
	}{
		{"latency mid bucket", 80, 100, 20, 0, true, 80},
		{"latency low bucket", 60, 100, 20, 0, true, 90},
		{"download mid bucket", 20, 20, 20, 0, true, 85},
		{"upload low bucket", 20, 100, 10, 0, true, 95},
		{"slight obstruction", 20, 100, 20, 0.5, true, 95},
		{"heavy obstruction", 20, 100, 20, 12, true, 80},
		{"snr below noise", 20, 100, 20, 0, false, 90},
	}
	for _, c := range cases {
		if got := Score(c.latency, c.download, c.upload, c.obstr, c.snr); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}

func TestScoreNegativeInputsClamped(t *testing.T) {
	// a negative latency must not skip every penalty bucket
	withNegative := Score(-5, 100, 20, 0, true)
	withZero := Score(0, 100, 20, 0, true)
	if withNegative != withZero {
		t.Fatalf("negative latency scored %d, zero latency scored %d", withNegative, withZero)
	}
}

func TestScoreNeverOutOfRange(t *testing.T) {
	extremes := [][4]float64{
		{0, 0, 0, 100},
		{10000, 0, 0, 100},
		{-100, -100, -100, -100},
	}
	for _, e := range extremes {
		got := Score(e[0], e[1], e[2], e[3], false)
		if got < 0 || got > 100 {
			t.Fatalf("score %d out of range for inputs %v", got, e)
		}
	}
}
