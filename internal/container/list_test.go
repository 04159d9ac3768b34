package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavelet-io/wavelet-go/internal/container"
)

func stringEqual(a, b string) bool { return a == b }

func TestListAddAndElements(t *testing.T) {
	l := container.NewList(container.Config[string]{Equal: stringEqual})
	require.NoError(t, l.Add("ch1"))
	require.NoError(t, l.Add("ch2"))
	assert.Equal(t, []string{"ch1", "ch2"}, l.Elements())
	assert.Equal(t, 2, l.Count())
}

func TestListFixedSizeRejectsOverflow(t *testing.T) {
	l := container.NewList(container.Config[string]{
		InitialCapacity: 1,
		Strategy:        container.ResizeNone,
		Equal:           stringEqual,
	})
	require.NoError(t, l.Add("ch1"))
	err := l.Add("ch2")
	assert.ErrorIs(t, err, container.ErrFixedSize)
}

func TestListRemoveRunsDestructorOnlyOnLastReference(t *testing.T) {
	var destroyed []string
	l := container.NewList(container.Config[string]{
		Equal:      stringEqual,
		Destructor: func(s string) { destroyed = append(destroyed, s) },
	})
	require.NoError(t, l.Add("ch1"))

	other := container.NewList(container.Config[string]{Equal: stringEqual})
	require.NoError(t, other.Merge(l)) // shares the "ch1" entry, rc now 2

	freed := l.Remove("ch1", false)
	assert.False(t, freed, "other list still holds a reference")
	assert.Empty(t, destroyed)

	freed = other.Remove("ch1", false)
	assert.True(t, freed, "last reference should run the destructor")
	assert.Equal(t, []string{"ch1"}, destroyed)
}

func TestListSubtract(t *testing.T) {
	a := container.NewList(container.Config[string]{Equal: stringEqual})
	b := container.NewList(container.Config[string]{Equal: stringEqual})
	require.NoError(t, a.Add("ch1"))
	require.NoError(t, a.Add("ch2"))
	require.NoError(t, b.Add("ch2"))

	a.Subtract(b, false)
	assert.Equal(t, []string{"ch1"}, a.Elements())
}

func TestListPopFirstLast(t *testing.T) {
	l := container.NewList(container.Config[string]{Equal: stringEqual})
	require.NoError(t, l.Add("a"))
	require.NoError(t, l.Add("b"))
	require.NoError(t, l.Add("c"))

	first, ok := l.PopFirst()
	require.True(t, ok)
	assert.Equal(t, "a", first)

	last, ok := l.PopLast()
	require.True(t, ok)
	assert.Equal(t, "c", last)

	assert.Equal(t, []string{"b"}, l.Elements())
}

func TestListCopySharesEntries(t *testing.T) {
	var destroyed int
	l := container.NewList(container.Config[string]{
		Equal:      stringEqual,
		Destructor: func(string) { destroyed++ },
	})
	require.NoError(t, l.Add("ch1"))
	cp := l.Copy()

	l.RemoveAll()
	assert.Zero(t, destroyed, "copy still references the entry")

	cp.RemoveAll()
	assert.Equal(t, 1, destroyed)
}
