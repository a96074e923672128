package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/monitor"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

// Engine over in-memory stores, with one well-reputed author ("trusted")
// whose ordinary posts score Valid.
func EngineTestFixture() (*Engine, *store.MemStore) {
	ms := store.NewMemStore()
	ms.AddAuthor(models.Author{
		Username:            "trusted",
		Name:                "Trusted Reporter",
		IsVerified:          true,
		ProfileCompleteness: 100,
		Followers:           5000,
		Following:           100,
		IsPublic:            true,
	})
	cfg := DefaultConfig()
	cfg.Logger = slog.Default()
	eng := NewEngine(ms, modestore.NewMemModeStore(), countstore.NewMemCountStore(), cfg)
	return eng, ms
}

// Stores good posts (scoring Valid) and bad posts (scoring Unknown) directly,
// bypassing the ingestion gate. Returns the ids of the bad posts.
func SeedWindow(ctx context.Context, ms *store.MemStore, prefix string, good, bad int) ([]uint, error) {
	var badIDs []uint
	for i := 0; i < good+bad; i++ {
		ext := fmt.Sprintf("%s-%d", prefix, i)
		p := models.Post{
			ExternalID: &ext,
			Name:       "Trusted Reporter",
			Username:   "trusted",
			Content:    "a measured and sourced report",
			Status:     models.VerdictValid,
		}
		if i >= good {
			p.Username = "sock-puppet"
			p.Content = "the whole thing is a hoax"
		}
		if err := ms.CreatePost(ctx, &p); err != nil {
			return nil, err
		}
		if i >= good {
			badIDs = append(badIDs, p.ID)
		}
	}
	return badIDs, nil
}

// Notifier which records what it was asked to send.
type MemNotifier struct {
	mu          sync.Mutex
	Activations []monitor.Report
	ModeChanges []modestore.Mode
}

var _ Notifier = (*MemNotifier)(nil)

func (n *MemNotifier) SendActivation(ctx context.Context, rep *monitor.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Activations = append(n.Activations, *rep)
	return nil
}

func (n *MemNotifier) SendModeChange(ctx context.Context, mode modestore.Mode, source string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ModeChanges = append(n.ModeChanges, mode)
	return nil
}
