package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/minios-linux/cmsl10n/pipeline"
	"github.com/minios-linux/cmsl10n/prsync"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a schedule", nil, nil)
	assert.ErrorContains(t, err, "invalid resync schedule")
}

func TestResyncUsesResyncEvent(t *testing.T) {
	var got []prsync.Metadata
	s, err := New("@hourly", func(_ context.Context, meta prsync.Metadata) (*prsync.Result, error) {
		got = append(got, meta)
		return &prsync.Result{Action: prsync.ActionUnchanged}, nil
	}, nil)
	require.NoError(t, err)

	s.Resync()
	require.Len(t, got, 1)
	assert.Equal(t, EventResync, got[0].Event)
}

func TestResyncToleratesErrors(t *testing.T) {
	calls := 0
	for _, runErr := range []error{errors.New("boom"), pipeline.ErrNoEntries} {
		s, err := New("*/5 * * * *", func(context.Context, prsync.Metadata) (*prsync.Result, error) {
			calls++
			return nil, runErr
		}, nil)
		require.NoError(t, err)
		s.Resync()
	}
	assert.Equal(t, 2, calls)
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", func(context.Context, prsync.Metadata) (*prsync.Result, error) {
		return nil, nil
	}, nil)
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}
