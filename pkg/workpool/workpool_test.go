package workpool

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapRunsAllJobs(t *testing.T) {
	var processed atomic.Int32

	err := Wrap(3, func(p *Pool) error {
		for i := 0; i < 10; i++ {
			p.Process(Job{
				Name: "job",
				Run: func() error {
					processed.Add(1)
					return nil
				},
			})
		}
		return nil
	})

	require.NoError(t, err)
	require.EqualValues(t, 10, processed.Load())
}

func TestWrapReturnsFirstJobError(t *testing.T) {
	boom := errors.New("boom")

	err := Wrap(2, func(p *Pool) error {
		p.Process(Job{Name: "ok", Run: func() error { return nil }})
		p.Process(Job{Name: "bad", Run: func() error { return boom }})
		return nil
	})

	require.ErrorIs(t, err, boom)
}

func TestWrapPropagatesSubmitErrorOverJobError(t *testing.T) {
	submitErr := errors.New("submit failed")
	jobErr := errors.New("job failed")

	err := Wrap(1, func(p *Pool) error {
		p.Process(Job{Name: "bad", Run: func() error { return jobErr }})
		return submitErr
	})

	require.ErrorIs(t, err, submitErr)
}

func TestStopDrainsBeforeReturning(t *testing.T) {
	p := New(4)

	var processed atomic.Int32
	for i := 0; i < 50; i++ {
		p.Process(Job{Run: func() error {
			processed.Add(1)
			return nil
		}})
	}

	require.NoError(t, p.Stop())
	require.EqualValues(t, 50, processed.Load())
}
