package peer

import (
	"errors"

	"github.com/pion/webrtc/v4"
)

var ErrMalformedQueue = errors.New("candidate queue not empty after drain")

// CandidateQueue копит удалённые кандидаты, пришедшие раньше remote description.
// Опустошается ровно один раз за жизнь движка, порядок FIFO.
type CandidateQueue struct {
	items   []webrtc.ICECandidateInit
	drained bool
}

func (q *CandidateQueue) Push(c webrtc.ICECandidateInit) {
	q.items = append(q.items, c)
}

func (q *CandidateQueue) Len() int {
	return len(q.items)
}

func (q *CandidateQueue) Drained() bool {
	return q.drained
}

// Drain отдаёт кандидаты в apply в порядке поступления. Ошибка apply по одному
// кандидату не останавливает остальные. Повторный вызов ничего не делает.
func (q *CandidateQueue) Drain(apply func(webrtc.ICECandidateInit)) error {
	if q.drained {
		return nil
	}

	q.drained = true

	items := q.items
	q.items = nil

	for _, c := range items {
		apply(c)
	}

	if len(q.items) != 0 {
		return ErrMalformedQueue
	}

	return nil
}

func (q *CandidateQueue) Reset() {
	q.items = nil
	q.drained = false
}
