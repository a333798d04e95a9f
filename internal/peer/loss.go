package peer

import "sync"

// lossCounter считает потерянные RTP пакеты по разрывам в номерах, отдельно на каждый SSRC
type lossCounter struct {
	mu      sync.Mutex
	streams map[uint32]*seqState
}

type seqState struct {
	base     uint32
	highest  uint32
	cycles   uint32
	received uint64
}

func newLossCounter() *lossCounter {
	return &lossCounter{streams: make(map[uint32]*seqState)}
}

func (l *lossCounter) Observe(ssrc uint32, seq uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.streams[ssrc]
	if !ok {
		l.streams[ssrc] = &seqState{base: uint32(seq), highest: uint32(seq), received: 1}
		return
	}

	st.received++

	last := uint16(st.highest)
	diff := seq - last

	// Прыжок вперёд меньше половины окна - новый пакет, иначе переупорядоченный
	if diff == 0 || diff >= 1<<15 {
		return
	}

	if seq < last {
		st.cycles += 1 << 16
	}

	st.highest = st.cycles | uint32(seq)
}

func (l *lossCounter) Totals() (received, lost uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, st := range l.streams {
		expected := uint64(st.highest-st.base) + 1
		received += st.received

		if expected > st.received {
			lost += expected - st.received
		}
	}

	return received, lost
}
