package corruption

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouteflan/penrose-experiment/internal/domain"
)

func newTestEngine(seed uint64) *Engine {
	return NewEngine(rand.New(rand.NewPCG(seed, seed+1)))
}

func TestApplyIgnoresNonTriggeringActions(t *testing.T) {
	e := newTestEngine(1)
	ev := e.Apply("s1", domain.Classification{Gravity: 9}, 0.2)
	assert.Nil(t, ev)
	assert.Equal(t, 0.0, e.Level("s1"))
}

func TestThreeStepsStayWithinRandomBounds(t *testing.T) {
	c := domain.Classification{TriggersCorruption: true, Gravity: 5, Multiplier: 0.5}
	for seed := uint64(1); seed <= 20; seed++ {
		e := newTestEngine(seed)
		level := 0.0
		for i := 0; i < 3; i++ {
			ev := e.Apply("s1", c, level)
			require.NotNil(t, ev)
			level = ev.NewLevel
		}
		if level < 0.12-1e-9 || level > 0.18+1e-9 {
			t.Fatalf("seed %d: level %v outside [0.12, 0.18]", seed, level)
		}
	}
}

func TestLevelIsMonotoneAndCapped(t *testing.T) {
	e := newTestEngine(7)
	r := rand.New(rand.NewPCG(3, 4))
	level := 0.0
	for i := 0; i < 200; i++ {
		c := domain.Classification{
			TriggersCorruption: true,
			Gravity:            r.IntN(11),
			Multiplier:         1 + r.Float64()*2,
			Destructive:        r.IntN(2) == 0,
		}
		ev := e.Apply("s1", c, level)
		require.NotNil(t, ev)
		if ev.NewLevel < level {
			t.Fatalf("step %d: level decreased from %v to %v", i, level, ev.NewLevel)
		}
		if ev.NewLevel > 1.0 {
			t.Fatalf("step %d: level %v exceeds 1.0", i, ev.NewLevel)
		}
		if ev.Increment > maxIncrement+1e-12 {
			t.Fatalf("step %d: increment %v exceeds ceiling", i, ev.Increment)
		}
		level = ev.NewLevel
	}
	assert.Equal(t, 1.0, level)
}

func TestEffectsRespectMinimumLevel(t *testing.T) {
	e := newTestEngine(11)
	c := domain.Classification{TriggersCorruption: true, Gravity: 10, Multiplier: 3, Destructive: true}
	ev := e.Apply("s1", c, 0.3)
	require.NotNil(t, ev)
	assert.InDelta(t, 0.45, ev.NewLevel, 1e-9)
	require.NotEmpty(t, ev.Effects)
	for _, eff := range ev.Effects {
		assert.NotEqual(t, domain.EffectInterfaceDistortion, eff.Kind)
		assert.NotEqual(t, domain.EffectSystemInstability, eff.Kind)
		assert.GreaterOrEqual(t, eff.Intensity, 0.0)
		assert.LessOrEqual(t, eff.Intensity, 1.0)
	}
	// 1 + int(0.45*3) + 1 = 3 of the 4 available effects.
	assert.Len(t, ev.Effects, 3)
}

func TestHistoryIsCapped(t *testing.T) {
	e := newTestEngine(5)
	c := domain.Classification{TriggersCorruption: true, Gravity: 1, Multiplier: 0.01}
	level := 0.0
	for i := 0; i < historyCap+20; i++ {
		level = e.Apply("s1", c, level).NewLevel
	}
	e.mu.Lock()
	n := len(e.sessions["s1"].history)
	e.mu.Unlock()
	assert.Equal(t, historyCap, n)
	assert.Equal(t, historyCap+20, e.Describe("s1").Summary.TotalEvents)
}

func TestDescribeIsDeterministic(t *testing.T) {
	e := newTestEngine(9)
	e.Reset("s1", 0.65)

	first := e.Describe("s1")
	second := e.Describe("s1")
	assert.Equal(t, first, second)
	assert.Equal(t, "severe", first.Band)
	assert.Len(t, first.Effects, 5)
	assert.False(t, first.Visual.CriticalMode)
}

func TestBandThresholds(t *testing.T) {
	assert.Equal(t, "minimal", Band(0.2))
	assert.Equal(t, "noticeable", Band(0.21))
	assert.Equal(t, "concerning", Band(0.6))
	assert.Equal(t, "severe", Band(0.8))
	assert.Equal(t, "catastrophic", Band(0.81))
}

func TestTrend(t *testing.T) {
	assert.Equal(t, TrendStable, Trend([]float64{0.1, 0.5}))
	assert.Equal(t, TrendAccelerating, Trend([]float64{0.0, 0.1, 0.2, 0.3}))
	assert.Equal(t, TrendRecovering, Trend([]float64{0.5, 0.4, 0.3}))
	assert.Equal(t, TrendStable, Trend([]float64{0.3, 0.31, 0.32}))
	// only the last five levels count
	assert.Equal(t, TrendStable, Trend([]float64{0, 0.5, 0.5, 0.5, 0.5, 0.5}))
}

func TestResetAndForget(t *testing.T) {
	e := newTestEngine(2)
	e.Reset("s1", 1.7)
	assert.Equal(t, 1.0, e.Level("s1"))
	e.Forget("s1")
	assert.Equal(t, 0.0, e.Level("s1"))
	assert.Equal(t, "minimal", e.Describe("s1").Band)
}
