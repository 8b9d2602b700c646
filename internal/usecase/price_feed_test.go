package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFeed_NoPriceUntilFirstUpdate(t *testing.T) {
	feed := NewPriceFeed()

	_, ok := feed.Price()
	assert.False(t, ok)

	feed.Update(50000)
	price, ok := feed.Price()
	require.True(t, ok)
	assert.Equal(t, 50000.0, price)
}

func TestPriceFeed_IgnoresNonPositiveUpdates(t *testing.T) {
	feed := NewPriceFeed()
	feed.Update(50000)

	feed.Update(0)
	feed.Update(-1)

	price, ok := feed.Price()
	require.True(t, ok)
	assert.Equal(t, 50000.0, price)
}

func TestPriceFeed_SnapshotChangePercentages(t *testing.T) {
	feed := NewPriceFeed()
	feed.SetPrevDayClose(50000)
	feed.Update(50000)
	feed.Update(51000)

	snap := feed.Snapshot()
	assert.Equal(t, 51000.0, snap.Price)
	assert.Equal(t, 50000.0, snap.PrevPrice)
	assert.InDelta(t, 2.0, snap.ChangePct, 0.0001)
	assert.InDelta(t, 2.0, snap.CloseChangePct, 0.0001)
}

func TestPriceFeed_SnapshotWithoutReferenceData(t *testing.T) {
	feed := NewPriceFeed()
	feed.Update(50000)

	snap := feed.Snapshot()
	assert.Zero(t, snap.ChangePct)
	assert.Zero(t, snap.CloseChangePct)
}
