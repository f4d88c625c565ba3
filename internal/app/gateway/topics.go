package gateway

import (
	"sync"

	"github.com/dkeye/hearth/internal/core"
)

// TopicIndex maps a topic key to the connections subscribed to it. The
// reverse index lets a disconnect drop every subscription in one pass.
type TopicIndex[K comparable] struct {
	mu     sync.RWMutex
	subs   map[K]map[core.ConnectionID]struct{}
	byConn map[core.ConnectionID]map[K]struct{}
}

func NewTopicIndex[K comparable]() *TopicIndex[K] {
	return &TopicIndex[K]{
		subs:   make(map[K]map[core.ConnectionID]struct{}),
		byConn: make(map[core.ConnectionID]map[K]struct{}),
	}
}

// Add reports false if conn was already subscribed.
func (x *TopicIndex[K]) Add(topic K, conn core.ConnectionID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	set, ok := x.subs[topic]
	if !ok {
		set = make(map[core.ConnectionID]struct{})
		x.subs[topic] = set
	}
	if _, dup := set[conn]; dup {
		return false
	}
	set[conn] = struct{}{}
	topics, ok := x.byConn[conn]
	if !ok {
		topics = make(map[K]struct{})
		x.byConn[conn] = topics
	}
	topics[topic] = struct{}{}
	return true
}

// Remove reports false if conn was not subscribed.
func (x *TopicIndex[K]) Remove(topic K, conn core.ConnectionID) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.removeLocked(topic, conn)
}

func (x *TopicIndex[K]) removeLocked(topic K, conn core.ConnectionID) bool {
	set, ok := x.subs[topic]
	if !ok {
		return false
	}
	if _, ok := set[conn]; !ok {
		return false
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(x.subs, topic)
	}
	if topics, ok := x.byConn[conn]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(x.byConn, conn)
		}
	}
	return true
}

// RemoveConn drops every subscription of conn and returns the topics it left.
func (x *TopicIndex[K]) RemoveConn(conn core.ConnectionID) []K {
	x.mu.Lock()
	defer x.mu.Unlock()
	topics := x.byConn[conn]
	out := make([]K, 0, len(topics))
	for topic := range topics {
		out = append(out, topic)
	}
	for _, topic := range out {
		x.removeLocked(topic, conn)
	}
	return out
}

// DropTopic forgets a topic and all of its subscriptions.
func (x *TopicIndex[K]) DropTopic(topic K) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for conn := range x.subs[topic] {
		if topics, ok := x.byConn[conn]; ok {
			delete(topics, topic)
			if len(topics) == 0 {
				delete(x.byConn, conn)
			}
		}
	}
	delete(x.subs, topic)
}

func (x *TopicIndex[K]) Subscribers(topic K) []core.ConnectionID {
	x.mu.RLock()
	defer x.mu.RUnlock()
	set := x.subs[topic]
	out := make([]core.ConnectionID, 0, len(set))
	for conn := range set {
		out = append(out, conn)
	}
	return out
}

func (x *TopicIndex[K]) IsSubscribed(topic K, conn core.ConnectionID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.subs[topic][conn]
	return ok
}

func (x *TopicIndex[K]) Topics(conn core.ConnectionID) []K {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]K, 0, len(x.byConn[conn]))
	for topic := range x.byConn[conn] {
		out = append(out, topic)
	}
	return out
}
