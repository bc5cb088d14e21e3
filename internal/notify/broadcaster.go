package notify

import (
	"fmt"
	"sync"
)

// Broadcaster fans published values out to every subscriber. Publishing
// never blocks: a subscriber whose buffer is full loses its oldest value.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[<-chan T]chan T
	buffer      int
	stopped     bool
}

func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subscribers: make(map[<-chan T]chan T),
		buffer:      max(buffer, 1),
	}
}

func (b *Broadcaster[T]) Subscribe() (<-chan T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		logger.Println("Can't subscribe")
		return nil, fmt.Errorf("failed to subscribe: broadcaster is stopped")
	}

	ch := make(chan T, b.buffer)
	b.subscribers[ch] = ch
	logger.Printf("New subscriber (%d total)", len(b.subscribers))
	return ch, nil
}

// Unsubscribe removes and closes a channel returned by Subscribe
func (b *Broadcaster[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[sub]
	if !ok {
		return
	}
	delete(b.subscribers, sub)
	close(ch)
	logger.Println("Unsubscribed")
}

// Publish is safe for concurrent use
func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			logger.Println("Subscriber channel is full, dropping oldest value")
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// Stop closes every subscriber channel; later publishes are ignored
func (b *Broadcaster[T]) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	for sub, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, sub)
	}
	logger.Println("Stopped broadcaster")
}
