package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"gadgetwars.ai/internal/sim/engine"
)

type Header struct {
	Version int    `json:"version"`
	GameID  string `json:"game_id"`
	Round   int    `json:"round"`
}

// SnapshotV1 is a complete game archive after a resolved round: enough to
// resume the game or re-run the next round without the store. Catalog and
// tuning digests are carried so a resume against drifted configs fails loudly
// instead of silently diverging.
type SnapshotV1 struct {
	Header Header `json:"header"`

	SeedSalt  string `json:"seed_salt,omitempty"`
	MaxRounds int    `json:"max_rounds"`

	TechDigest        string `json:"tech_digest"`
	SegmentDigest     string `json:"segment_digest"`
	AchievementDigest string `json:"achievement_digest"`
	TuningDigest      string `json:"tuning_digest"`

	Teams      []TeamV1               `json:"teams"`
	Market     *engine.MarketState    `json:"market"`
	Registry   *engine.PatentRegistry `json:"registry"`
	Standings  []engine.Standing      `json:"standings,omitempty"`
	AuditTrail *engine.AuditTrail     `json:"audit,omitempty"`
	Events     []ScheduledEventV1     `json:"events,omitempty"`
}

type TeamV1 struct {
	ID    engine.TeamID     `json:"id"`
	Name  string            `json:"name"`
	State *engine.TeamState `json:"state"`
}

type ScheduledEventV1 struct {
	Round int                     `json:"round"`
	Event engine.FacilitatorEvent `json:"event"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	// A JSON header line first, so tooling can identify a snapshot without
	// decoding the gob body.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Skip the header line; the gob body carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReaderSize(dec, 64*1024).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}
