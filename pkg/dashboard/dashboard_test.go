package dashboard

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/ace-dash/pkg/app"
	"gitlab.com/tinyland/lab/ace-dash/pkg/metrics"
	"gitlab.com/tinyland/lab/ace-dash/pkg/registry"
)

type fixture struct {
	d   *Dashboard
	reg *registry.Registry
	m   *metrics.Metrics
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	reg := registry.New()
	m := metrics.New()
	cfg := Config{Metrics: m}
	for _, fn := range mutate {
		fn(&cfg)
	}
	d := New(reg, cfg)
	t.Cleanup(d.Close)
	return &fixture{d: d, reg: reg, m: m}
}

// settle waits for queued tasks and for any follow-up task they queued.
func settle(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Sync(ctx))
	require.NoError(t, d.Sync(ctx))
}

// inspect runs fn against the shell on the render goroutine.
func inspect(t *testing.T, d *Dashboard, fn func(s *Shell)) {
	t.Helper()
	require.NoError(t, d.disp.Enqueue("inspect", fn))
	require.NoError(t, d.Sync(context.Background()))
}

func order(t *testing.T, d *Dashboard) []string {
	t.Helper()
	var out []string
	inspect(t, d, func(s *Shell) {
		out = s.Order()
		assert.True(t, s.consistent(), "ledger and grid disagree")
	})
	return out
}

func started(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := newFixture(t, mutate...)
	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)
	require.True(t, f.d.Ready())
	return f
}

func textApp(name string, pos int) *app.Basic {
	return app.New(name, pos, app.NewTextIcon("◆", name), app.NewTextView(name, name+" main view"))
}

type brokenApp struct {
	*app.Basic
}

func (brokenApp) DashboardIcon() app.Icon { panic("icon exploded") }

type stubLoader struct {
	node app.Node
	err  error
}

func (l stubLoader) LoadImage(context.Context, string) (app.Node, error) { return l.node, l.err }

type staticNode string

func (n staticNode) View(int, int) string { return string(n) }

func TestMusicNavPhoneOrdering(t *testing.T) {
	f := started(t)

	require.NoError(t, f.d.OnAppAvailable(textApp("Music", 10)))
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	require.NoError(t, f.d.OnAppAvailable(textApp("Phone", 10)))
	settle(t, f.d)

	assert.Equal(t, []string{"Nav", "Music", "Phone"}, order(t, f.d))
	require.Eventually(t, func() bool {
		return fmt.Sprint(f.d.Frame().Order()) == "[Nav Music Phone]"
	}, time.Second, 5*time.Millisecond)
}

func TestOrderingInvariantUnderChurn(t *testing.T) {
	f := started(t)
	rng := rand.New(rand.NewPCG(7, 11))

	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("app-%d", rng.IntN(25))
		if rng.IntN(3) == 0 {
			_ = f.d.RemoveByName(name)
			continue
		}
		require.NoError(t, f.d.OnAppAvailable(textApp(name, rng.IntN(6))))
	}
	settle(t, f.d)

	var positions []int
	var names []string
	inspect(t, f.d, func(s *Shell) {
		assert.True(t, s.consistent())
		for _, slot := range s.grid.Slots() {
			positions = append(positions, slot.Position)
			names = append(names, slot.Name)
		}
	})
	assert.True(t, sort.IntsAreSorted(positions), "positions %v", positions)

	assert.ElementsMatch(t, f.reg.Names(), names)
}

func TestReRegisteringSameInstanceRendersOnce(t *testing.T) {
	f := started(t)
	a := textApp("Music", 10)

	require.NoError(t, f.d.OnAppAvailable(a))
	require.NoError(t, f.d.OnAppAvailable(a))
	settle(t, f.d)

	assert.Equal(t, []string{"Music"}, order(t, f.d))
}

func TestReRegisteringNewInstanceReplacesIcon(t *testing.T) {
	f := started(t)
	first := textApp("Music", 10)
	second := textApp("Music", 1)

	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	require.NoError(t, f.d.OnAppAvailable(first))
	require.NoError(t, f.d.OnAppAvailable(second))
	settle(t, f.d)

	assert.Equal(t, []string{"Music", "Nav"}, order(t, f.d))
	inspect(t, f.d, func(s *Shell) {
		slot, ok := s.Slot("Music")
		if assert.True(t, ok) {
			assert.Same(t, second.DashboardIcon(), slot.Icon)
		}
	})
	assert.False(t, first.DashboardIcon().(*app.TextIcon).HasHandler())
	assert.True(t, second.DashboardIcon().(*app.TextIcon).HasHandler())
}

func TestRemovalIsIdempotent(t *testing.T) {
	f := started(t)
	a := textApp("Phone", 3)
	require.NoError(t, f.d.OnAppAvailable(a))
	settle(t, f.d)

	require.NoError(t, f.d.OnAppRemoved(a))
	err := f.d.OnAppRemoved(a)
	require.ErrorIs(t, err, registry.ErrNotFound)
	settle(t, f.d)

	assert.Empty(t, order(t, f.d))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Deregistrations.WithLabelValues("not_found")))
}

func TestRemoveUnknownAppIsNoOp(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	settle(t, f.d)

	require.ErrorIs(t, f.d.RemoveByName("Ghost"), registry.ErrNotFound)
	settle(t, f.d)
	assert.Equal(t, []string{"Nav"}, order(t, f.d))
}

func TestOnAppRemovedNil(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.d.OnAppRemoved(nil), registry.ErrInvalidApp)
}

func TestRegisteredBeforeStartRenderedOnStart(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Phone", 10)))
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	settle(t, f.d)
	assert.Nil(t, order(t, f.d))

	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)

	assert.Equal(t, Ready, f.d.State())
	assert.Equal(t, []string{"Nav", "Phone"}, order(t, f.d))
}

func TestStartingWindowChangesAreReconciled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Early", 1)))
	require.NoError(t, f.d.OnAppAvailable(textApp("Kept", 2)))

	f.d.afterSnapshot = func() {
		assert.NoError(t, f.d.OnAppAvailable(textApp("Late", 0)))
		assert.NoError(t, f.d.RemoveByName("Early"))
	}
	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)

	assert.Equal(t, []string{"Late", "Kept"}, order(t, f.d))
}

func TestClickShowsAppAndHomeReturnsToGrid(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("A", 1)))
	require.NoError(t, f.d.OnAppAvailable(textApp("B", 2)))
	settle(t, f.d)

	require.NoError(t, f.d.Click("B"))
	settle(t, f.d)
	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewState{Kind: ViewApp, App: "B"}, s.View())
		assert.Equal(t, "Ace Car Entertainment > B", s.Title())
	})
	require.Eventually(t, func() bool {
		fr := f.d.Frame()
		return fr.View.Kind == ViewApp && fr.Title == "Ace Car Entertainment > B"
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, ansi.Strip(f.d.Frame().Content), "B main view")

	require.NoError(t, f.d.Home())
	settle(t, f.d)
	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewGrid, s.View().Kind)
		assert.Equal(t, DefaultTitle, s.Title())
	})
}

func TestIconClickFromAppGoroutineIsQueued(t *testing.T) {
	f := started(t)
	music := textApp("Music", 1)
	require.NoError(t, f.d.OnAppAvailable(music))
	settle(t, f.d)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			music.DashboardIcon().Click()
		}
	}()
	for i := 0; i < 200; i++ {
		require.NoError(t, f.d.Home())
	}
	wg.Wait()
	settle(t, f.d)

	music.DashboardIcon().Click()
	settle(t, f.d)
	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewState{Kind: ViewApp, App: "Music"}, s.View())
		assert.Equal(t, "Ace Car Entertainment > Music", s.Title())
	})
}

func TestIconClickAfterRemovalIsIgnored(t *testing.T) {
	f := started(t)
	music := textApp("Music", 1)
	require.NoError(t, f.d.OnAppAvailable(music))
	settle(t, f.d)

	release := make(chan struct{})
	require.NoError(t, f.d.disp.Enqueue("block", func(*Shell) { <-release }))
	require.NoError(t, f.d.RemoveByName("Music"))
	music.DashboardIcon().Click()
	close(release)
	settle(t, f.d)

	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewGrid, s.View().Kind)
		assert.Equal(t, DefaultTitle, s.Title())
	})
}

func TestClickUnknownIconIsIgnored(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.Click("nobody"))
	settle(t, f.d)
	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewGrid, s.View().Kind)
	})
}

func TestRemovingActiveAppReturnsToGrid(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Music", 1)))
	settle(t, f.d)
	require.NoError(t, f.d.Click("Music"))
	settle(t, f.d)

	require.NoError(t, f.d.RemoveByName("Music"))
	settle(t, f.d)

	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, ViewGrid, s.View().Kind)
		assert.Equal(t, DefaultTitle, s.Title())
		assert.Nil(t, s.active)
	})
}

func TestRestartReproducesOrder(t *testing.T) {
	f := started(t)
	for _, a := range []*app.Basic{textApp("Music", 10), textApp("Nav", 5), textApp("Phone", 10), textApp("Clock", 5)} {
		require.NoError(t, f.d.OnAppAvailable(a))
	}
	settle(t, f.d)
	before := order(t, f.d)

	require.NoError(t, f.d.Stop())
	settle(t, f.d)
	assert.Equal(t, Stopped, f.d.State())
	assert.False(t, f.d.Ready())
	assert.Nil(t, order(t, f.d))

	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)
	assert.Equal(t, before, order(t, f.d))
}

func TestStartWhileStoppingQueuesAfterTeardown(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Music", 10)))
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	settle(t, f.d)

	require.NoError(t, f.d.Stop())
	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)

	assert.Equal(t, Ready, f.d.State())
	assert.True(t, f.d.Ready())
	assert.Equal(t, []string{"Nav", "Music"}, order(t, f.d))
}

func TestRapidStopStartCyclesEndReady(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))
	settle(t, f.d)

	release := make(chan struct{})
	require.NoError(t, f.d.disp.Enqueue("block", func(*Shell) { <-release }))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.d.Stop())
		require.NoError(t, f.d.Start(context.Background()))
	}
	close(release)
	settle(t, f.d)

	assert.Equal(t, Ready, f.d.State())
	assert.True(t, f.d.Ready())
	assert.Equal(t, []string{"Nav"}, order(t, f.d))
}

func TestChangesWhileStoppedAreSeenOnRestart(t *testing.T) {
	f := started(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Music", 10)))
	settle(t, f.d)
	require.NoError(t, f.d.Stop())
	settle(t, f.d)

	require.NoError(t, f.d.RemoveByName("Music"))
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))

	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)
	assert.Equal(t, []string{"Nav"}, order(t, f.d))
}

func TestStaleRenderIsSkipped(t *testing.T) {
	f := started(t)

	release := make(chan struct{})
	require.NoError(t, f.d.disp.Enqueue("block", func(*Shell) { <-release }))

	require.NoError(t, f.d.OnAppAvailable(textApp("Ghost", 1)))
	require.NoError(t, f.d.RemoveByName("Ghost"))
	close(release)
	settle(t, f.d)

	assert.Empty(t, order(t, f.d))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RenderSkipped))
}

func TestSupersededRenderIsSkipped(t *testing.T) {
	f := started(t)

	release := make(chan struct{})
	require.NoError(t, f.d.disp.Enqueue("block", func(*Shell) { <-release }))

	old := textApp("Music", 1)
	cur := textApp("Music", 2)
	require.NoError(t, f.d.OnAppAvailable(old))
	require.NoError(t, f.d.OnAppAvailable(cur))
	close(release)
	settle(t, f.d)

	inspect(t, f.d, func(s *Shell) {
		assert.Equal(t, 1, s.grid.Len())
		slot, ok := s.Slot("Music")
		if assert.True(t, ok) {
			assert.Same(t, cur.DashboardIcon(), slot.Icon)
			assert.Equal(t, 2, slot.Position)
		}
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.RenderSkipped))
}

func TestPanickingAppDoesNotStopRendering(t *testing.T) {
	f := started(t)

	require.NoError(t, f.d.OnAppAvailable(brokenApp{textApp("Broken", 1)}))
	require.NoError(t, f.d.OnAppAvailable(textApp("Fine", 2)))
	settle(t, f.d)

	assert.Equal(t, uint64(1), f.d.Stats().Faulted)
	assert.Equal(t, []string{"Fine"}, order(t, f.d))
}

func TestPanickingAppDuringStartStillReachesReady(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.OnAppAvailable(brokenApp{textApp("Broken", 1)}))
	require.NoError(t, f.d.OnAppAvailable(textApp("Fine", 2)))

	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)

	assert.Equal(t, Ready, f.d.State())
	assert.Equal(t, []string{"Fine"}, order(t, f.d))
}

func TestUIIntentsRequireReady(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.d.Click("Music"), ErrNotReady)
	assert.ErrorIs(t, f.d.Home(), ErrNotReady)
}

func TestLifecycleStateErrors(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.d.Stop(), ErrBadState)

	require.NoError(t, f.d.Start(context.Background()))
	assert.ErrorIs(t, f.d.Start(context.Background()), ErrBadState)
	settle(t, f.d)

	require.NoError(t, f.d.Stop())
	assert.ErrorIs(t, f.d.Stop(), ErrBadState)
}

func TestStopDuringStartNeverBecomesReady(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.d.OnAppAvailable(textApp("Nav", 5)))

	release := make(chan struct{})
	require.NoError(t, f.d.disp.Enqueue("block", func(*Shell) { <-release }))
	require.NoError(t, f.d.Start(context.Background()))
	require.NoError(t, f.d.Stop())
	close(release)
	settle(t, f.d)

	assert.Equal(t, Stopped, f.d.State())
	assert.False(t, f.d.Ready())
	assert.Nil(t, order(t, f.d))
}

func TestResize(t *testing.T) {
	f := started(t)
	assert.Error(t, f.d.Resize(0, 10))

	require.NoError(t, f.d.Resize(120, 40))
	settle(t, f.d)
	require.Eventually(t, func() bool {
		fr := f.d.Frame()
		return fr.Width == 120 && fr.Height == 40
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeReceivesFrames(t *testing.T) {
	f := newFixture(t)
	frames := make(chan Frame, 64)
	unsubscribe := f.d.Subscribe(func(fr Frame) {
		select {
		case frames <- fr:
		default:
		}
	})

	require.NoError(t, f.d.OnAppAvailable(textApp("Music", 1)))
	require.NoError(t, f.d.Start(context.Background()))
	settle(t, f.d)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case fr := <-frames:
			if fr.Ready && len(fr.Icons) == 1 {
				assert.Equal(t, "Music", fr.Icons[0].Name)
				assert.NotEmpty(t, fr.Icons[0].View)
				unsubscribe()
				return
			}
		case <-deadline:
			t.Fatal("no ready frame published")
		}
	}
}

func TestHomeIconFallsBackWhenLoaderFails(t *testing.T) {
	f := started(t, func(c *Config) {
		c.Loader = stubLoader{err: errors.New("missing asset")}
	})
	require.Eventually(t, func() bool {
		return f.d.Frame().Ready
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, ansi.Strip(f.d.Frame().Home), "⌂")
}

func TestHomeIconFromLoader(t *testing.T) {
	f := started(t, func(c *Config) {
		c.Loader = stubLoader{node: staticNode("LOGO")}
	})
	require.Eventually(t, func() bool {
		return f.d.Frame().Home == "LOGO"
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentRegistrationKeepsShellConsistent(t *testing.T) {
	f := started(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(g), 42))
			for i := 0; i < 100; i++ {
				name := fmt.Sprintf("app-%d", rng.IntN(12))
				if rng.IntN(2) == 0 {
					_ = f.d.RemoveByName(name)
				} else {
					_ = f.d.OnAppAvailable(textApp(name, rng.IntN(4)))
				}
			}
		}(g)
	}
	wg.Wait()
	settle(t, f.d)

	assert.ElementsMatch(t, f.reg.Names(), order(t, f.d))

	inspect(t, f.d, func(s *Shell) {
		for name, slot := range s.ledger {
			assert.True(t, f.reg.Current(name, slot.Generation), "stale icon for %s", name)
		}
	})
}
