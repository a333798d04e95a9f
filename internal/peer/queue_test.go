package peer

import (
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%d 1 udp 2122260223 10.0.0.%d 5000 typ host", i, i)}
}

func TestDrainKeepsArrivalOrder(t *testing.T) {
	for _, n := range []int{0, 1, 3, 17} {
		t.Run(fmt.Sprintf("%d candidates", n), func(t *testing.T) {
			var q CandidateQueue
			for i := 0; i < n; i++ {
				q.Push(candidate(i))
			}

			var applied []webrtc.ICECandidateInit
			require.NoError(t, q.Drain(func(c webrtc.ICECandidateInit) { applied = append(applied, c) }))

			require.Len(t, applied, n)
			for i := range applied {
				assert.Equal(t, candidate(i), applied[i])
			}
			assert.Zero(t, q.Len())
			assert.True(t, q.Drained())
		})
	}
}

func TestDrainRunsOnce(t *testing.T) {
	var q CandidateQueue
	q.Push(candidate(1))

	calls := 0
	require.NoError(t, q.Drain(func(webrtc.ICECandidateInit) { calls++ }))
	require.NoError(t, q.Drain(func(webrtc.ICECandidateInit) { calls++ }))

	assert.Equal(t, 1, calls)
}

func TestDrainDetectsPushDuringApply(t *testing.T) {
	var q CandidateQueue
	q.Push(candidate(1))

	err := q.Drain(func(c webrtc.ICECandidateInit) { q.Push(c) })
	assert.ErrorIs(t, err, ErrMalformedQueue)
}

func TestResetStartsNewLifecycle(t *testing.T) {
	var q CandidateQueue
	q.Push(candidate(1))
	require.NoError(t, q.Drain(func(webrtc.ICECandidateInit) {}))

	q.Reset()
	q.Push(candidate(2))

	assert.False(t, q.Drained())
	assert.Equal(t, 1, q.Len())
}
