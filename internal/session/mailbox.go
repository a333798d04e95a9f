package session

import "sync"

// mailbox - неограниченная очередь задач цикла сессии.
// После остановки цикла задачи выполняются на горутине отправителя, но по-прежнему по одной.
type mailbox struct {
	mu     sync.Mutex
	tasks  []func()
	inline bool

	ready chan struct{}
	run   sync.Mutex
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) post(fn func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, fn)
	inline := m.inline
	m.mu.Unlock()

	if inline {
		m.drain()
		return
	}

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// loop крутится до закрытия quit, затем переводит очередь в режим inline
func (m *mailbox) loop(quit <-chan struct{}) {
	for {
		select {
		case <-m.ready:
			m.drain()
		case <-quit:
			m.mu.Lock()
			m.inline = true
			m.mu.Unlock()

			m.drain()
			return
		}
	}
}

func (m *mailbox) drain() {
	for {
		if !m.run.TryLock() {
			return
		}

		for {
			batch := m.take()
			if len(batch) == 0 {
				break
			}

			for _, fn := range batch {
				fn()
			}
		}

		m.run.Unlock()

		// задача могла прийти между последним take и Unlock
		if m.empty() {
			return
		}
	}
}

func (m *mailbox) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.tasks
	m.tasks = nil

	return batch
}

func (m *mailbox) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tasks) == 0
}
