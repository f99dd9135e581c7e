package state

import (
	"sync"
	"time"

	"GameStateServer/internal/service/events/csgo"
)

// Change — одно заметное изменение состояния игры.
type Change struct {
	At   time.Time
	Text string
}

// State — потокобезопасная лента изменений игрового состояния фиксированной ёмкости.
// Хранит последнюю сводку, чтобы сравнивать с ней следующую.
type State struct {
	cap     int
	last    csgo.Summary
	hasLast bool
	changes []Change
	mu      sync.Mutex
	notify  chan struct{}
	now     func() time.Time
}

func New(capacity int) *State {
	if capacity <= 0 {
		capacity = 20
	}
	return &State{cap: capacity, changes: make([]Change, 0, capacity), notify: make(chan struct{}, 1), now: time.Now}
}

// Observe сравнивает сводку с предыдущей и добавляет найденные изменения в ленту.
// Первая сводка записывается целиком. Возвращает добавленные строки.
func (s *State) Observe(sum csgo.Summary) []string {
	s.mu.Lock()
	var texts []string
	if !s.hasLast {
		texts = []string{"connected: " + sum.String()}
	} else {
		texts = csgo.Diff(s.last, sum)
	}
	s.last, s.hasLast = sum, true

	at := s.now()
	for _, t := range texts {
		// при переполнении удаляем самое старое
		if len(s.changes) == s.cap {
			copy(s.changes, s.changes[1:])
			s.changes = s.changes[:s.cap-1]
		}
		s.changes = append(s.changes, Change{At: at, Text: t})
	}
	s.mu.Unlock()

	if len(texts) > 0 {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return texts
}

// Last возвращает последнюю наблюдённую сводку.
func (s *State) Last() (csgo.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Drain возвращает все изменения и очищает ленту.
func (s *State) Drain() []Change {
	s.mu.Lock()
	out := make([]Change, len(s.changes))
	copy(out, s.changes)
	s.changes = s.changes[:0]
	s.mu.Unlock()
	return out
}

func (s *State) Len() int {
	s.mu.Lock()
	l := len(s.changes)
	s.mu.Unlock()
	return l
}

// NotifyCh сигнализирует о появлении новых изменений.
func (s *State) NotifyCh() <-chan struct{} { return s.notify }
