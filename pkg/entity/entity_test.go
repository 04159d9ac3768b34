package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelet-io/wavelet-go/pkg/entity"
)

func TestNewRejectsEmptyID(t *testing.T) {
	_, err := entity.New(entity.KindChannel, "", nil)
	assert.Error(t, err)
}

func TestSubscriptionFreeRunsEntityDestructorExactlyOnce(t *testing.T) {
	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)

	var destroyedCount int
	ch.OnDestroy(func(*entity.Entity) { destroyedCount++ })

	subA := entity.Alloc(nil, ch, entity.Options{})
	subB := entity.Alloc(nil, ch, entity.Options{})
	assert.EqualValues(t, 2, ch.RefCount())

	subA.Free()
	assert.Zero(t, destroyedCount)
	subA.Free() // idempotent
	assert.Zero(t, destroyedCount)

	subB.Free()
	assert.Equal(t, 1, destroyedCount)
}

func TestSubscribablesWithPresence(t *testing.T) {
	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, ch, entity.Options{ReceivePresenceEvents: true})

	subs := sub.Subscribables()
	require.Len(t, subs, 2)
	assert.Equal(t, "ch1", subs[0].ID)
	assert.False(t, subs[0].Presence)
	assert.Equal(t, "ch1-pnpres", subs[1].ID)
	assert.True(t, subs[1].Presence)
}

func TestChannelGroupUsesQueryLocation(t *testing.T) {
	g, err := entity.New(entity.KindChannelGroup, "grp1", nil)
	require.NoError(t, err)
	sub := entity.Alloc(nil, g, entity.Options{})

	subs := sub.Subscribables()
	require.Len(t, subs, 1)
	assert.Equal(t, entity.LocationQuery, subs[0].Location)
}

func TestSubscriptionSetRejectsDuplicateEntityID(t *testing.T) {
	ch, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)
	other, err := entity.New(entity.KindChannel, "ch1", nil)
	require.NoError(t, err)

	set := entity.NewSetFromEntities(nil, nil, entity.Options{})
	require.NoError(t, set.Add(entity.Alloc(nil, ch, entity.Options{})))
	err = set.Add(entity.Alloc(nil, other, entity.Options{}))
	assert.ErrorIs(t, err, entity.ErrDuplicateEntity)
	assert.Equal(t, 1, set.Count())
}

func TestSubscriptionSetUnionThenSubtractYieldsOriginal(t *testing.T) {
	a := entity.NewSetFromEntities(nil, nil, entity.Options{})
	b := entity.NewSetFromEntities(nil, nil, entity.Options{})

	chA, _ := entity.New(entity.KindChannel, "ch1", nil)
	chB, _ := entity.New(entity.KindChannel, "ch2", nil)
	require.NoError(t, a.Add(entity.Alloc(nil, chA, entity.Options{})))
	require.NoError(t, b.Add(entity.Alloc(nil, chB, entity.Options{})))

	a.Union(b)
	require.Equal(t, 2, a.Count())

	a.Subtract(b)
	assert.Equal(t, 1, a.Count())
	_, ok := a.Member("ch1")
	assert.True(t, ok)
}

func TestAggregateSubscribablesDedupesAcrossSubscriptionsAndSets(t *testing.T) {
	ch1, _ := entity.New(entity.KindChannel, "ch1", nil)
	ch2, _ := entity.New(entity.KindChannel, "ch2", nil)
	sub1 := entity.Alloc(nil, ch1, entity.Options{})

	set := entity.NewSetFromEntities(nil, nil, entity.Options{})
	require.NoError(t, set.Add(entity.Alloc(nil, ch1, entity.Options{}))) // shares "ch1" with the top-level sub
	require.NoError(t, set.Add(entity.Alloc(nil, ch2, entity.Options{})))

	subs := entity.AggregateSubscribables([]*entity.Subscription{sub1}, []*entity.SubscriptionSet{set})
	channels, groups := entity.SplitByLocation(subs)
	assert.ElementsMatch(t, []string{"ch1", "ch2"}, channels)
	assert.Empty(t, groups)
}
