package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/hearth/internal/core"
)

func TestTopicIndexAddRemove(t *testing.T) {
	x := NewTopicIndex[string]()

	assert.True(t, x.Add("general", "c1"))
	assert.False(t, x.Add("general", "c1"), "second add is a no-op")
	assert.True(t, x.Add("general", "c2"))
	assert.True(t, x.Add("random", "c1"))

	assert.ElementsMatch(t, []core.ConnectionID{"c1", "c2"}, x.Subscribers("general"))
	assert.ElementsMatch(t, []string{"general", "random"}, x.Topics("c1"))

	assert.True(t, x.Remove("general", "c2"))
	assert.False(t, x.Remove("general", "c2"))
	assert.False(t, x.Remove("nowhere", "c1"))
	assert.False(t, x.IsSubscribed("general", "c2"))
	assert.True(t, x.IsSubscribed("general", "c1"))
}

func TestTopicIndexRemoveConn(t *testing.T) {
	x := NewTopicIndex[string]()
	x.Add("a", "c1")
	x.Add("b", "c1")
	x.Add("b", "c2")

	left := x.RemoveConn("c1")
	assert.ElementsMatch(t, []string{"a", "b"}, left)
	assert.Empty(t, x.Subscribers("a"))
	assert.Equal(t, []core.ConnectionID{"c2"}, x.Subscribers("b"))
	assert.Empty(t, x.Topics("c1"))
	assert.Empty(t, x.RemoveConn("c1"), "idempotent")
}

func TestTopicIndexDropTopic(t *testing.T) {
	x := NewTopicIndex[string]()
	x.Add("a", "c1")
	x.Add("b", "c1")
	x.Add("a", "c2")

	x.DropTopic("a")
	assert.Empty(t, x.Subscribers("a"))
	assert.Equal(t, []string{"b"}, x.Topics("c1"))
	assert.Empty(t, x.Topics("c2"))
}
