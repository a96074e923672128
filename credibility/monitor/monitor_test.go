package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/scoring"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.MemStore
	modes   *modestore.MemModeStore
	monitor *Monitor
	n       int
}

func newFixture(cfg Config) *fixture {
	ms := store.NewMemStore()
	ms.AddAuthor(models.Author{Username: "trusted", IsVerified: true, ProfileCompleteness: 100})
	modes := modestore.NewMemModeStore()
	sampler := &RepoSampler{Posts: ms, Authors: ms, Comments: ms}
	return &fixture{
		store:   ms,
		modes:   modes,
		monitor: NewMonitor(cfg, scoring.NewScorer(), sampler, ms, modes, nil),
	}
}

// Adds good posts that score Valid and bad posts that score Unknown. Returns the ids of the bad ones.
func (f *fixture) seed(t *testing.T, good, bad int) []uint {
	ctx := context.Background()
	var badIDs []uint
	for i := 0; i < good; i++ {
		f.n++
		ext := fmt.Sprintf("good-%d", f.n)
		p := models.Post{ExternalID: &ext, Username: "trusted", Content: "a measured and sourced post", Status: models.VerdictValid}
		require.NoError(t, f.store.CreatePost(ctx, &p))
	}
	for i := 0; i < bad; i++ {
		f.n++
		ext := fmt.Sprintf("bad-%d", f.n)
		// persisted status is irrelevant; the monitor re-scores
		p := models.Post{ExternalID: &ext, Username: "sock-puppet", Content: "this is a HOAX", Status: models.VerdictValid}
		require.NoError(t, f.store.CreatePost(ctx, &p))
		badIDs = append(badIDs, p.ID)
	}
	return badIDs
}

func TestTriggered(t *testing.T) {
	assert := assert.New(t)
	cfg := DefaultConfig()

	assert.False(cfg.Triggered(0, 0))
	assert.False(cfg.Triggered(9, 9))
	assert.False(cfg.Triggered(10, 3))
	assert.True(cfg.Triggered(10, 4))
	assert.True(cfg.Triggered(100, 31))
	assert.False(cfg.Triggered(100, 30))
}

func TestActivation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture(DefaultConfig())
	bad := f.seed(t, 6, 4)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.True(rep.Activated)
	assert.Equal(10, rep.Sample)
	assert.Equal(4, rep.Suspect)
	assert.ElementsMatch(bad, rep.Flagged)

	mode, err := f.modes.Get(ctx)
	assert.NoError(err)
	assert.True(mode.Active)

	for _, id := range bad {
		p, err := f.store.FindPost(ctx, id)
		require.NoError(t, err)
		assert.True(p.NeedsManualReview)
	}
	counts, err := f.store.CountPosts(ctx)
	assert.NoError(err)
	assert.Equal(int64(4), counts.ManualReview)

	// once elevated, nothing more is examined
	rep, err = f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.True(rep.AlreadyActive)
	assert.False(rep.Activated)
}

func TestBelowMinSample(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture(DefaultConfig())
	f.seed(t, 5, 4)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.False(rep.Activated)
	assert.Equal(9, rep.Sample)

	mode, _ := f.modes.Get(ctx)
	assert.False(mode.Active)
	counts, _ := f.store.CountPosts(ctx)
	assert.Equal(int64(0), counts.ManualReview)
}

func TestAtThreshold(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture(DefaultConfig())
	f.seed(t, 7, 3)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.False(rep.Activated)
	assert.InDelta(0.3, rep.SuspectFraction(), 1e-9)
}

func TestEmptyWindow(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(DefaultConfig())
	rep, err := f.monitor.CheckAndMaybeActivate(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(0, rep.Sample)
	assert.False(rep.Activated)
}

func TestWindowExcludesOldPosts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture(DefaultConfig())
	now := time.Now()
	f.store.Now = func() time.Time { return now.Add(-72 * time.Hour) }
	f.seed(t, 0, 10)
	f.store.Now = func() time.Time { return now }
	f.seed(t, 10, 0)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, now)
	require.NoError(t, err)
	assert.Equal(10, rep.Sample)
	assert.Equal(0, rep.Suspect)
	assert.False(rep.Activated)
}

func TestConfigurableThresholds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.MinSample = 3
	cfg.OutlierFraction = 0.5
	f := newFixture(cfg)
	f.seed(t, 1, 2)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.True(rep.Activated)
}

func TestCancelledContextDoesNotMutate(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(DefaultConfig())
	f.seed(t, 6, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	assert.ErrorIs(err, context.Canceled)

	mode, _ := f.modes.Get(context.Background())
	assert.False(mode.Active)
	counts, _ := f.store.CountPosts(context.Background())
	assert.Equal(int64(0), counts.ManualReview)
}

// Blocks every sample until released.
type gatedSampler struct {
	Sampler
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSampler) SampleBetween(ctx context.Context, since, until time.Time) ([]Sample, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Sampler.SampleBetween(ctx, since, until)
}

func TestCancelledCallerDoesNotAbortSharedCheck(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(DefaultConfig())
	f.seed(t, 6, 4)
	gate := &gatedSampler{Sampler: f.monitor.Sampler, entered: make(chan struct{}, 1), release: make(chan struct{})}
	f.monitor.Sampler = gate

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.monitor.CheckAndMaybeActivate(ctxA, time.Now())
		errA <- err
	}()
	<-gate.entered

	type result struct {
		rep *Report
		err error
	}
	resB := make(chan result, 1)
	go func() {
		rep, err := f.monitor.CheckAndMaybeActivate(context.Background(), time.Now())
		resB <- result{rep, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(<-errA, context.Canceled)
	close(gate.release)

	b := <-resB
	require.NoError(t, b.err)
	assert.True(b.rep.Activated || b.rep.AlreadyActive)

	mode, _ := f.modes.Get(context.Background())
	assert.True(mode.Active)
	counts, _ := f.store.CountPosts(context.Background())
	assert.Equal(int64(4), counts.ManualReview)
}

func TestCheckTimeoutDoesNotMutate(t *testing.T) {
	assert := assert.New(t)

	cfg := DefaultConfig()
	cfg.CheckTimeout = 10 * time.Millisecond
	f := newFixture(cfg)
	f.seed(t, 6, 4)
	gate := &gatedSampler{Sampler: f.monitor.Sampler, entered: make(chan struct{}, 1), release: make(chan struct{})}
	f.monitor.Sampler = gate

	go func() {
		<-gate.entered
		time.Sleep(50 * time.Millisecond)
		close(gate.release)
	}()
	_, err := f.monitor.CheckAndMaybeActivate(context.Background(), time.Now())
	assert.ErrorIs(err, context.DeadlineExceeded)

	mode, _ := f.modes.Get(context.Background())
	assert.False(mode.Active)
	counts, _ := f.store.CountPosts(context.Background())
	assert.Equal(int64(0), counts.ManualReview)
}

func TestConcurrentChecks(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture(DefaultConfig())
	f.seed(t, 6, 4)
	activations := 0
	var mu sync.Mutex
	f.monitor.OnActivate = func(ctx context.Context, rep *Report) {
		mu.Lock()
		activations++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
			assert.NoError(err)
		}()
	}
	wg.Wait()

	mode, _ := f.modes.Get(ctx)
	assert.True(mode.Active)
	assert.Equal(1, activations)
	counts, _ := f.store.CountPosts(ctx)
	assert.Equal(int64(4), counts.ManualReview)
}

func TestScanThrottle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.ScanLimit = 0.001
	f := newFixture(cfg)

	rep, err := f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.False(rep.Skipped)
	rep, err = f.monitor.CheckAndMaybeActivate(ctx, time.Now())
	require.NoError(t, err)
	assert.True(rep.Skipped)
}

func TestRunStopsOnCancel(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(DefaultConfig())
	f.seed(t, 6, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- f.monitor.Run(ctx, 5*time.Millisecond)
	}()

	assert.Eventually(func() bool {
		mode, _ := f.modes.Get(context.Background())
		return mode.Active
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(<-done, context.Canceled)
}
