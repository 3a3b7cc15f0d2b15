package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lockin-monolith/internal/core"
)

type memStore struct {
	mu       sync.Mutex
	counters map[int64]core.UserCounters
	events   map[string]core.Completion
}

func newMemStore() *memStore {
	return &memStore{
		counters: make(map[int64]core.UserCounters),
		events:   make(map[string]core.Completion),
	}
}

func (m *memStore) InCompletionTx(userID int64, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, userID: userID, staged: make(map[string]core.Completion)}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.savedCounters != nil {
		m.counters[userID] = *tx.savedCounters
	}
	for id, c := range tx.staged {
		m.events[id] = c
	}
	return nil
}

type memTx struct {
	store         *memStore
	userID        int64
	savedCounters *core.UserCounters
	staged        map[string]core.Completion
}

func (t *memTx) Counters() (core.UserCounters, error) {
	c, ok := t.store.counters[t.userID]
	if !ok {
		c = core.UserCounters{UserID: t.userID}
	}
	return c, nil
}

func (t *memTx) SaveCounters(c core.UserCounters) error {
	t.savedCounters = &c
	return nil
}

func (t *memTx) HasCompletion(id string) (bool, error) {
	_, ok := t.store.events[id]
	return ok, nil
}

func (t *memTx) InsertCompletion(c core.Completion) error {
	t.staged[c.ID] = c
	return nil
}

type fixedPricer map[string]int

func (p fixedPricer) AuraValue(habitID string) int {
	if v, ok := p[habitID]; ok {
		return v
	}
	return core.DefaultAura
}

func newTestLedger(t *testing.T, prices fixedPricer) (*Ledger, *memStore) {
	ms := newMemStore()
	return New(ms, prices, zaptest.NewLogger(t)), ms
}

func TestRecordFirstCompletion(t *testing.T) {
	l, _ := newTestLedger(t, fixedPricer{"workout": 20})
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	res, err := l.Record(1, "workout", at)
	require.NoError(t, err)

	assert.True(t, res.Counted)
	assert.True(t, res.NewDay)
	assert.Equal(t, 20, res.AuraEarned)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 20, res.Counters.TotalAura)
	require.NotNil(t, res.Counters.LastCompleted)
	assert.Equal(t, at, *res.Counters.LastCompleted)
}

func TestRecordDuplicateIsNoOp(t *testing.T) {
	l, ms := newTestLedger(t, fixedPricer{"workout": 20})
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.Record(1, "workout", at)
	require.NoError(t, err)

	// Retry of the same event later the same day
	res, err := l.Record(1, "workout", at.Add(2*time.Hour))
	require.NoError(t, err)

	assert.False(t, res.Counted)
	assert.Equal(t, 0, res.AuraEarned)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 20, res.Counters.TotalAura)
	assert.Len(t, ms.events, 1)
}

func TestSameDayDifferentHabits(t *testing.T) {
	l, ms := newTestLedger(t, fixedPricer{"workout": 20, "reading": 10})
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := l.Record(1, "workout", at)
	require.NoError(t, err)

	res, err := l.Record(1, "reading", at.Add(3*time.Hour))
	require.NoError(t, err)

	// Both habits earn points but the day advances only once
	assert.True(t, res.Counted)
	assert.False(t, res.NewDay)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 30, res.Counters.TotalAura)
	assert.Len(t, ms.events, 2)
}

func TestStreakContinuity(t *testing.T) {
	l, _ := newTestLedger(t, fixedPricer{"workout": 20})
	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res, err := l.Record(1, "workout", day1.AddDate(0, 0, i))
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Counters.StreakCount)
	}

	// Skipping a day resets to 1
	res, err := l.Record(1, "workout", day1.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 4, res.Counters.TotalCount)
}

func TestStreakAcrossUTCMidnight(t *testing.T) {
	l, _ := newTestLedger(t, fixedPricer{"workout": 20})

	_, err := l.Record(1, "workout", time.Date(2024, 1, 1, 23, 55, 0, 0, time.UTC))
	require.NoError(t, err)

	res, err := l.Record(1, "workout", time.Date(2024, 1, 2, 0, 10, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counters.StreakCount)
	assert.Equal(t, 2, res.Counters.TotalCount)
}

func TestEndToEndScenario(t *testing.T) {
	l, _ := newTestLedger(t, fixedPricer{"morning-run": 20, "journaling": 10})

	day1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	res, err := l.Record(1, "morning-run", day1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 20, res.Counters.TotalAura)

	res, err = l.Record(1, "journaling", day1.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 30, res.Counters.TotalAura)

	res, err = l.Record(1, "morning-run", day1.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counters.TotalCount)
	assert.Equal(t, 2, res.Counters.StreakCount)
	assert.Equal(t, 50, res.Counters.TotalAura)
}

func TestConcurrentSameDayCompletions(t *testing.T) {
	l, _ := newTestLedger(t, fixedPricer{"workout": 20, "reading": 10, "water": 10})
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	habits := []string{"workout", "reading", "water"}
	var wg sync.WaitGroup
	for _, h := range habits {
		wg.Add(1)
		go func(habitID string) {
			defer wg.Done()
			_, err := l.Record(1, habitID, at)
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	res, err := l.Record(1, "workout", at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, res.Counted)
	assert.Equal(t, 1, res.Counters.TotalCount)
	assert.Equal(t, 1, res.Counters.StreakCount)
	assert.Equal(t, 40, res.Counters.TotalAura)
}

func TestEventID(t *testing.T) {
	at := time.Date(2024, 3, 10, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	// 04:30 UTC March 11
	assert.Equal(t, "7:daily-walk:2024-03-11", EventID(7, "daily-walk", at))
}
