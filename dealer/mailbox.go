package dealer

// mailbox holds pending station events. With capacity 1 it is the single-slot handoff between the sweep
// and dispense loops. When full, put overwrites the oldest event.
type mailbox struct {
	buf  []int
	head int
	size int
}

func newMailbox(capacity int) mailbox {
	if capacity < 1 {
		capacity = 1
	}
	return mailbox{buf: make([]int, capacity)}
}

// put stores the station and reports whether an unconsumed event was dropped to make room
func (m *mailbox) put(station int) bool {
	overwrote := false
	if m.size == len(m.buf) {
		m.head = (m.head + 1) % len(m.buf)
		m.size--
		overwrote = true
	}

	m.buf[(m.head+m.size)%len(m.buf)] = station
	m.size++

	return overwrote
}

// take removes the oldest event
func (m *mailbox) take() (int, bool) {
	if m.size == 0 {
		return 0, false
	}

	station := m.buf[m.head]
	m.head = (m.head + 1) % len(m.buf)
	m.size--

	return station, true
}

func (m *mailbox) empty() bool {
	return m.size == 0
}
