package run

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestRegistryCreateAndGet verifies the initial state of a fresh run.
func TestRegistryCreateAndGet(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop())
	st, err := reg.Create("run-1")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, st.Status)
	require.Zero(t, st.Progress)
	require.False(t, st.Created.IsZero())

	got, err := reg.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, st, got)

	_, err = reg.Create("run-1")
	require.ErrorIs(t, err, ErrRunExists)
}

// TestRegistryGetUnknown returns ErrRunNotFound for ids never created.
func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop())
	_, err := reg.Get("missing")
	require.ErrorIs(t, err, ErrRunNotFound)
	_, err = reg.ApplyReport("missing", Report{Status: "in_progress", Progress: intPtr(5)})
	require.ErrorIs(t, err, ErrRunNotFound)
}

// TestRegistryApplyRejectionLeavesStateUnchanged checks the atomic-replace
// contract: a rejected report must not leak a partial update.
func TestRegistryApplyRejectionLeavesStateUnchanged(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop())
	_, err := reg.Create("run-1")
	require.NoError(t, err)
	_, err = reg.ApplyReport("run-1", Report{Status: "in_progress", Progress: intPtr(50)})
	require.NoError(t, err)

	_, err = reg.ApplyReport("run-1", Report{Status: "completed"})
	var invalid *InvalidReportError
	require.ErrorAs(t, err, &invalid)

	st, err := reg.Get("run-1")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, st.Status)
	require.Equal(t, 50, st.Progress)
}

// TestRegistryTerminalHook fires once with the final snapshot, after the
// transition is stored.
func TestRegistryTerminalHook(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []State
	)
	var reg *Registry
	reg = NewRegistry(zap.NewNop(), WithTerminalHook(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		// The hook runs outside the registry lock, so reads are legal here.
		stored, err := reg.Get(st.ID)
		require.NoError(t, err)
		require.Equal(t, st, stored)
		calls = append(calls, st)
	}))

	_, err := reg.Create("run-1")
	require.NoError(t, err)
	_, err = reg.ApplyReport("run-1", Report{Status: "in_progress", Progress: intPtr(10)})
	require.NoError(t, err)
	_, err = reg.ApplyReport("run-1", Report{Status: "error", Error: strPtr("boom")})
	require.NoError(t, err)

	// A post-terminal report is rejected and must not re-fire the hook.
	_, err = reg.ApplyReport("run-1", Report{Status: "in_progress", Progress: intPtr(99)})
	require.ErrorIs(t, err, ErrRunAlreadyFinished)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	require.Equal(t, StatusError, calls[0].Status)
	require.Equal(t, "boom", calls[0].ErrorMessage)
}

// TestRegistryConcurrentReports hammers one run with racing progress reports
// and distinct runs in parallel; the registry must end consistent.
func TestRegistryConcurrentReports(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zap.NewNop())
	const runs = 8
	for i := 0; i < runs; i++ {
		_, err := reg.Create(fmt.Sprintf("run-%d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		id := fmt.Sprintf("run-%d", i)
		for p := 0; p <= 100; p += 20 {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				_, err := reg.ApplyReport(id, Report{Status: "in_progress", Progress: intPtr(p)})
				require.NoError(t, err)
			}(p)
		}
	}
	wg.Wait()

	require.Equal(t, runs, reg.Len())
	for i := 0; i < runs; i++ {
		st, err := reg.Get(fmt.Sprintf("run-%d", i))
		require.NoError(t, err)
		require.Equal(t, StatusInProgress, st.Status)
		require.GreaterOrEqual(t, st.Progress, 0)
		require.LessOrEqual(t, st.Progress, 100)
	}
}
