package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConsumeTokenIDIsSingleWinnerUnderConcurrency mirrors spec section 8's
// invariant (1): of N concurrent attach attempts racing the same token id,
// exactly one observes consumed=true.
func TestConsumeTokenIDIsSingleWinnerUnderConcurrency(t *testing.T) {
	f := New()
	ctx := context.Background()
	require.NoError(t, f.InsertTokenID(ctx, "tok-1", "session-1", time.Now().Add(time.Hour)))

	const racers = 50
	var wg sync.WaitGroup
	wins := make([]bool, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			consumed, err := f.ConsumeTokenID(ctx, "tok-1")
			require.NoError(t, err)
			wins[i] = consumed
		}(i)
	}
	wg.Wait()

	winCount := 0
	for _, w := range wins {
		if w {
			winCount++
		}
	}
	assert.Equal(t, 1, winCount)
	assert.False(t, f.HasTokenID("tok-1"))
}

func TestConsumeTokenIDUnknownIsNotAnError(t *testing.T) {
	f := New()
	consumed, err := f.ConsumeTokenID(context.Background(), "does-not-exist")
	assert.NoError(t, err)
	assert.False(t, consumed)
}
