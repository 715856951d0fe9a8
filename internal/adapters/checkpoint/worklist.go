package checkpoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/cadenza/internal/domain/model"
	"github.com/okian/cadenza/pkg/logger"
)

const worklistName = "worklist.json"

// worklist pins the run's ordered work targets next to its checkpoints.
// Checkpoint ranges are positional, so a resumed run must slice the exact
// list the original run sliced: rebuilding it from a source or dataset that
// changed in between would silently shift every index.
type worklist struct {
	Identities []worklistEntry `json:"identities"`
	SavedAt    time.Time       `json:"saved_at"`
}

type worklistEntry struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// SaveWorklist persists the ordered work list for this run atomically.
// It is written once, before the first checkpoint, and stays authoritative
// until the checkpoint directory is cleared for a new run.
func (s *FileStore) SaveWorklist(ctx context.Context, identities []model.TrackIdentity) error {
	wl := worklist{
		Identities: make([]worklistEntry, 0, len(identities)),
		SavedAt:    time.Now(),
	}
	for _, id := range identities {
		wl.Identities = append(wl.Identities, worklistEntry{Artist: id.Artist, Track: id.Track})
	}
	if err := s.writeAtomic(worklistName, wl); err != nil {
		return err
	}

	s.logger.Debug(ctx, "worklist saved", logger.Int("targets", len(identities)))
	return nil
}

// LoadWorklist returns the persisted work list for this run. The second
// return value is false when none has been saved yet.
func (s *FileStore) LoadWorklist(_ context.Context) ([]model.TrackIdentity, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, worklistName))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read worklist: %w", err)
	}

	var wl worklist
	if err := json.Unmarshal(data, &wl); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrCorruptCheckpoint, worklistName, err)
	}

	identities := make([]model.TrackIdentity, 0, len(wl.Identities))
	for _, e := range wl.Identities {
		identities = append(identities, model.NewTrackIdentity(e.Artist, e.Track))
	}
	return identities, true, nil
}
