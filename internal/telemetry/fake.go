package telemetry

import "sync"

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	Topics   []string
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error
	Closed       bool

	// Published receives the topic of every successful publish when non-nil.
	Published chan string
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Published: make(chan string, 64)}
}

func (f *FakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Topics = append(f.Topics, topic)
	f.Payloads = append(f.Payloads, payload)
	if f.Published != nil {
		select {
		case f.Published <- topic:
		default:
		}
	}
	return nil
}

func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (f *FakePublisher) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Closed
}
