package gossip

// Inbox holds pending messages ordered by descending priority. Equal
// priorities keep arrival order. Insertion is a linear scan; fleets are small
// enough that a heap would buy nothing and would lose stability.
//
// Inbox is owned by a single protocol engine and is not safe for concurrent use.
type Inbox struct {
	items []Message
}

func NewInbox() *Inbox {
	return &Inbox{}
}

// Enqueue inserts m before the first queued message of strictly lower priority.
func (q *Inbox) Enqueue(m Message) {
	p := m.Priority()
	idx := len(q.items)
	for i, queued := range q.items {
		if queued.Priority() < p {
			idx = i
			break
		}
	}
	q.items = append(q.items, Message{})
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = m
}

// Dequeue removes and returns the front message; ok is false when empty.
func (q *Inbox) Dequeue() (m Message, ok bool) {
	if len(q.items) == 0 {
		return Message{}, false
	}
	m = q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return m, true
}

func (q *Inbox) Peek() (Message, bool) {
	if len(q.items) == 0 {
		return Message{}, false
	}
	return q.items[0], true
}

func (q *Inbox) Len() int { return len(q.items) }

// DropBelow discards every queued message with priority lower than p and
// returns how many were dropped.
func (q *Inbox) DropBelow(p int) int {
	kept := q.items[:0]
	for _, m := range q.items {
		if m.Priority() >= p {
			kept = append(kept, m)
		}
	}
	dropped := len(q.items) - len(kept)
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = Message{}
	}
	q.items = kept
	return dropped
}
