package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type tick struct{ n int }

func TestPublishFanout(t *testing.T) {
	b := New[tick]()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubC()

	b.Publish(tick{1})
	require.Equal(t, 1, (<-a).n)
	require.Equal(t, 1, (<-c).n)

	unsubA()
	unsubA()
	_, ok := <-a
	require.False(t, ok)

	b.Publish(tick{2})
	require.Equal(t, 2, (<-c).n)
}

func TestSlowSubscriberKeepsNewest(t *testing.T) {
	b := New[tick]()
	ch, unsub := b.Subscribe(2)
	defer unsub()

	for i := 1; i <= 5; i++ {
		b.Publish(tick{i})
	}
	require.Equal(t, 4, (<-ch).n)
	require.Equal(t, 5, (<-ch).n)
	require.Empty(t, ch)
	require.EqualValues(t, 3, b.Dropped())
}
