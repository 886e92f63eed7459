// Package catalogs loads the read-only game catalogs: the technology tree,
// the market segments, and the achievement definitions. Catalogs are
// process-wide configuration loaded once at startup and never mutated.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Families are the six capability axes shared by product feature vectors
// and segment preference weights.
var Families = []string{"battery", "camera", "display", "durability", "performance", "software"}

// RiskLevels are the declared research risk levels.
var RiskLevels = []string{"conservative", "moderate", "aggressive"}

type Catalogs struct {
	Tech         TechCatalog
	Segments     SegmentCatalog
	Achievements AchievementCatalog
}

type TechCatalog struct {
	ByID   map[string]TechNode
	IDs    []string // sorted
	Digest string
}

// TechNode is an immutable tech-tree entry.
type TechNode struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Family         string       `json:"family"`
	Tier           int          `json:"tier"`
	Prereqs        []string     `json:"prereqs,omitempty"`
	Cost           float64      `json:"cost"`
	DurationRounds int          `json:"duration_rounds"`
	Effects        []TechEffect `json:"effects,omitempty"`
}

// TechEffect kinds: "quality_bonus" (family axis, value in feature points),
// "cost_reduction" (fraction of unit cost), "segment_bonus" (additive score
// bonus in one segment), "feature_unlock" (named capability flag).
type TechEffect struct {
	Type    string  `json:"type"`
	Family  string  `json:"family,omitempty"`
	Segment string  `json:"segment,omitempty"`
	Feature string  `json:"feature,omitempty"`
	Value   float64 `json:"value,omitempty"`
}

type SegmentCatalog struct {
	ByID   map[string]Segment
	IDs    []string // sorted
	Digest string
}

type Segment struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Weights        map[string]float64 `json:"weights"` // family -> preference, sums to 1.0
	DominantFamily string             `json:"dominant_family"`
	BasePrice      float64            `json:"base_price"`
	BaseDemand     float64            `json:"base_demand"` // units per round
	UnitCost       float64            `json:"unit_cost"`
}

type AchievementCatalog struct {
	ByID   map[string]AchievementDef
	IDs    []string // sorted
	Digest string
}

type AchievementDef struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"` // "tech","product","market","pricing","patent","bad"
	Points   float64 `json:"points"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadTech(filepath.Join(configDir, "technologies.json"), &c.Tech); err != nil {
		return nil, err
	}
	if err := loadSegments(filepath.Join(configDir, "segments.json"), &c.Segments); err != nil {
		return nil, err
	}
	if err := loadAchievements(filepath.Join(configDir, "achievements.json"), &c.Achievements); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadTech(path string, out *TechCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []TechNode
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("technologies.json: %w", err)
	}
	out.ByID = map[string]TechNode{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("technologies.json: empty id")
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("technologies.json: duplicate id %q", d.ID)
		}
		if !validFamily(d.Family) {
			return fmt.Errorf("technologies.json: %s: unknown family %q", d.ID, d.Family)
		}
		if d.Tier < 1 || d.Tier > 5 {
			return fmt.Errorf("technologies.json: %s: tier %d outside 1..5", d.ID, d.Tier)
		}
		if d.Cost <= 0 || d.DurationRounds < 1 {
			return fmt.Errorf("technologies.json: %s: bad cost/duration", d.ID)
		}
		out.ByID[d.ID] = d
	}

	// Prereqs must reference known technologies.
	for _, d := range out.ByID {
		for _, p := range d.Prereqs {
			if _, ok := out.ByID[p]; !ok {
				return fmt.Errorf("technologies.json: %s: unknown prereq %q", d.ID, p)
			}
		}
	}

	out.IDs = sortedKeys(out.ByID)
	return nil
}

func loadSegments(path string, out *SegmentCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []Segment
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("segments.json: %w", err)
	}
	out.ByID = map[string]Segment{}
	for _, s := range defs {
		if s.ID == "" {
			return fmt.Errorf("segments.json: empty id")
		}
		sum := 0.0
		for fam, w := range s.Weights {
			if !validFamily(fam) {
				return fmt.Errorf("segments.json: %s: unknown family %q", s.ID, fam)
			}
			if w < 0 {
				return fmt.Errorf("segments.json: %s: negative weight for %q", s.ID, fam)
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-6 {
			return fmt.Errorf("segments.json: %s: weights sum to %v, want 1.0", s.ID, sum)
		}
		if !validFamily(s.DominantFamily) {
			return fmt.Errorf("segments.json: %s: unknown dominant family %q", s.ID, s.DominantFamily)
		}
		if s.BasePrice <= 0 || s.BaseDemand <= 0 || s.UnitCost < 0 {
			return fmt.Errorf("segments.json: %s: bad price/demand/cost", s.ID)
		}
		out.ByID[s.ID] = s
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func loadAchievements(path string, out *AchievementCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []AchievementDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("achievements.json: %w", err)
	}
	out.ByID = map[string]AchievementDef{}
	for _, a := range defs {
		if a.ID == "" {
			return fmt.Errorf("achievements.json: empty id")
		}
		if _, dup := out.ByID[a.ID]; dup {
			return fmt.Errorf("achievements.json: duplicate id %q", a.ID)
		}
		if a.Category == "bad" && a.Points != 0 {
			return fmt.Errorf("achievements.json: %s: bad achievements carry 0 points", a.ID)
		}
		out.ByID[a.ID] = a
	}
	out.IDs = sortedKeys(out.ByID)
	return nil
}

func validFamily(f string) bool {
	for _, fam := range Families {
		if fam == f {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
