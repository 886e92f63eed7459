package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gadgetwars.ai/internal/persistence/snapshot"
	"gadgetwars.ai/internal/sim/engine"
)

type GameArchiveMeta struct {
	GameID    string            `json:"game_id"`
	Rounds    int               `json:"rounds"`
	SeedSalt  string            `json:"seed_salt"`
	Snapshot  string            `json:"snapshot"`
	Standings []engine.Standing `json:"standings"`
	CreatedAt string            `json:"created_at"`
}

// ArchiveFinalSnapshot copies a game's last-round snapshot into
// `baseDir/archives/game_<id>/` together with a meta.json of the final
// standings. It returns (archivedPath, archived=true) only when the
// snapshot is the final round.
func ArchiveFinalSnapshot(baseDir, snapshotPath string, snap snapshot.SnapshotV1) (string, bool, error) {
	if snap.MaxRounds <= 0 || snap.Header.Round != snap.MaxRounds {
		return "", false, nil
	}

	archiveDir := filepath.Join(baseDir, "archives", fmt.Sprintf("game_%s", snap.Header.GameID))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := GameArchiveMeta{
		GameID:    snap.Header.GameID,
		Rounds:    snap.MaxRounds,
		SeedSalt:  snap.SeedSalt,
		Snapshot:  filepath.Base(dst),
		Standings: snap.Standings,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
