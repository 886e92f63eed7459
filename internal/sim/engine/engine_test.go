package engine

import (
	"os"
	"path/filepath"
	"testing"

	"gadgetwars.ai/internal/sim/catalogs"
	"gadgetwars.ai/internal/sim/tuning"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %s", dir)
		}
		dir = parent
	}
}

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(findRepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestEngine(t *testing.T, tun tuning.Tuning) *Engine {
	t.Helper()
	e, err := New(loadTestCatalogs(t), tun)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func newTeam(cash float64) *TeamState {
	return &TeamState{Cash: cash}
}

// noRandomness zeroes every event probability so stage outcomes are exact.
func noRandomness() tuning.Tuning {
	tun := tuning.Default()
	tun.Research.DelayProb = map[string]float64{"conservative": 0, "moderate": 0, "aggressive": 0}
	tun.Research.OverrunProb = map[string]float64{"conservative": 0, "moderate": 0, "aggressive": 0}
	return tun
}

func launchedProduct(id, segment string, features map[string]float64, price float64) Product {
	return Product{ID: id, Name: id, Segment: segment, Features: features, Price: price, Status: ProductLaunched}
}

func allFeatures(v float64) map[string]float64 {
	out := map[string]float64{}
	for _, fam := range catalogs.Families {
		out[fam] = v
	}
	return out
}
