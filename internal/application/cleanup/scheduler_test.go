package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTokenSweeper struct{ mock.Mock }

func (m *mockTokenSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type mockChallengeSweeper struct{ mock.Mock }

func (m *mockChallengeSweeper) DeleteExpired(ctx context.Context, now int64) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
func (m *mockChallengeSweeper) DeleteUsed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	s := NewScheduler(&mockTokenSweeper{}, &mockChallengeSweeper{})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestRunAll_ReportsRemovedCounts(t *testing.T) {
	tokens := &mockTokenSweeper{}
	tokens.On("Sweep", mock.Anything, mock.Anything).Return(2, nil)
	challenges := &mockChallengeSweeper{}
	challenges.On("DeleteExpired", mock.Anything, mock.Anything).Return(3, nil)
	challenges.On("DeleteUsed", mock.Anything).Return(1, nil)

	s := NewScheduler(tokens, challenges)
	results := s.RunAll(context.Background())

	assert.Equal(t, map[string]int{
		"token_sweep":             2,
		"expired_challenge_sweep": 3,
		"used_challenge_sweep":    1,
	}, results)
	tokens.AssertExpectations(t)
	challenges.AssertExpectations(t)
}

func TestRunAll_FailedTaskOmitted(t *testing.T) {
	tokens := &mockTokenSweeper{}
	tokens.On("Sweep", mock.Anything, mock.Anything).Return(0, context.DeadlineExceeded)
	challenges := &mockChallengeSweeper{}
	challenges.On("DeleteExpired", mock.Anything, mock.Anything).Return(4, nil)
	challenges.On("DeleteUsed", mock.Anything).Return(0, nil)

	s := NewScheduler(tokens, challenges)
	results := s.RunAll(context.Background())

	assert.NotContains(t, results, "token_sweep")
	assert.Equal(t, 4, results["expired_challenge_sweep"])
	assert.Equal(t, 0, results["used_challenge_sweep"])
}

func TestSweep_RunsTask(t *testing.T) {
	tokens := &mockTokenSweeper{}
	tokens.On("Sweep", mock.Anything, mock.Anything).Return(2, nil)

	s := NewScheduler(tokens, &mockChallengeSweeper{})
	removed, ok := s.sweep(context.Background(), s.tasks()[0])
	require.True(t, ok)
	assert.Equal(t, 2, removed)
	tokens.AssertExpectations(t)
}

func TestSweep_ErrorDoesNotPropagate(t *testing.T) {
	s := NewScheduler(&mockTokenSweeper{}, &mockChallengeSweeper{})
	require.NotPanics(t, func() {
		_, ok := s.sweep(context.Background(), sweepTask{
			name: "used_challenge_sweep",
			run: func(ctx context.Context) (int, error) {
				return 0, context.DeadlineExceeded
			},
		})
		assert.False(t, ok)
	})
}

func TestSweep_RecoversPanic(t *testing.T) {
	s := NewScheduler(&mockTokenSweeper{}, &mockChallengeSweeper{})
	require.NotPanics(t, func() {
		_, ok := s.sweep(context.Background(), sweepTask{
			name: "token_sweep",
			run: func(ctx context.Context) (int, error) {
				panic("boom")
			},
		})
		assert.False(t, ok)
	})
}
