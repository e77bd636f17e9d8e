package cache

// lruNode is a node in a doubly-linked LRU list. It stores the key so the
// entry can be dropped from the map when the node is evicted.
type lruNode struct {
	key  Key
	prev *lruNode
	next *lruNode
}

// lruList orders content keys by use. The head is the most recently used,
// the tail the least. Not safe for concurrent use.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

// Len returns the number of nodes in the list.
func (l *lruList) Len() int {
	return l.len
}

// PushFront adds key as the most recently used node.
func (l *lruList) PushFront(key Key) *lruNode {
	node := &lruNode{key: key}
	l.insertFront(node)
	return node
}

// MoveToFront marks node as the most recently used.
func (l *lruList) MoveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.insertFront(node)
}

// Remove unlinks node from the list.
func (l *lruList) Remove(node *lruNode) {
	if node != nil {
		l.unlink(node)
	}
}

// RemoveOldest unlinks the least recently used node and returns its key.
func (l *lruList) RemoveOldest() (Key, bool) {
	if l.tail == nil {
		return 0, false
	}
	node := l.tail
	l.unlink(node)
	return node.key, true
}

// Clear drops every node.
func (l *lruList) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *lruList) insertFront(node *lruNode) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

func (l *lruList) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
