package service

import "sync"

// Token identifies a connectivity subscription.
type Token uint64

type subscriber struct {
	token Token
	fn    func(connected bool)
}

// subscribers delivers connectivity changes in subscription order.
type subscribers struct {
	mu   sync.Mutex
	next Token
	list []subscriber
}

func (s *subscribers) subscribe(fn func(connected bool)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.list = append(s.list, subscriber{token: s.next, fn: fn})
	return s.next
}

func (s *subscribers) unsubscribe(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.list {
		if sub.token == token {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return true
		}
	}
	return false
}

// notify calls every subscriber outside the lock so callbacks may
// unsubscribe.
func (s *subscribers) notify(connected bool) {
	s.mu.Lock()
	list := s.list
	s.mu.Unlock()
	for _, sub := range list {
		sub.fn(connected)
	}
}
