package aggregate

import "testing"

func TestConfig_Bucket(t *testing.T) {
	cfg := DefaultConfig()

	cases := map[float64]string{
		0.95: BucketHigh,
		0.8:  BucketHigh,
		0.79: BucketMedium,
		0.5:  BucketMedium,
		0.1:  BucketLow,
	}
	for conf, want := range cases {
		if got := cfg.Bucket(conf); got != want {
			t.Errorf("Bucket(%v): expected %s, got %s", conf, want, got)
		}
	}
}

func TestConfig_RankDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Rank("Pathology") <= cfg.Rank("OncologyConsult") {
		t.Error("pathology must outrank oncology consults")
	}
	if cfg.Rank("OncologyConsult") <= cfg.Rank("Radiology") {
		t.Error("oncology consults must outrank radiology")
	}
	if cfg.Rank("NeverSeenBefore") != 0 {
		t.Error("unmapped note types rank 0")
	}
}
