// File: server/timeout_list.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

// timeoutList is an intrusive doubly linked list of Conns ordered by append
// time. Because every connection shares one fixed idle timeout, append
// order equals deadline order and the head is always the next to expire,
// which makes eviction O(1) amortized per tick. The list is owned by the
// event-loop thread exclusively.
type timeoutList struct {
	head *Conn
	tail *Conn
	size int
}

// front returns the next-to-expire connection, nil when empty.
func (l *timeoutList) front() *Conn { return l.head }

// len returns the number of linked connections.
func (l *timeoutList) len() int { return l.size }

// pushBack appends c to the tail.
func (l *timeoutList) pushBack(c *Conn) {
	if c.inList {
		panic("frameloop: pushBack of linked conn")
	}
	c.prev = l.tail
	c.next = nil
	if l.tail != nil {
		l.tail.next = c
	} else {
		l.head = c
	}
	l.tail = c
	c.inList = true
	l.size++
}

// remove unlinks c. It is a no-op for a connection that is not linked,
// which keeps close paths idempotent.
func (l *timeoutList) remove(c *Conn) {
	if !c.inList {
		return
	}
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		l.head = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		l.tail = c.prev
	}
	c.prev, c.next = nil, nil
	c.inList = false
	l.size--
}

// moveToBack relinks c at the tail after its deadline was refreshed,
// preserving the append-order == deadline-order invariant.
func (l *timeoutList) moveToBack(c *Conn) {
	l.remove(c)
	l.pushBack(c)
}
