package broker

type publication struct {
	sessionID string
	deltas    chan string
}

type subscription struct {
	sessionID string
	handoff   chan chan string
}

// AnswerBroker hands the delta channel of an in-flight answer from its
// producer to the first consumer, keyed by session ID. Subsequent consumers
// block until the producer finishes so that they can fall back to the
// persisted conversation log.
//
// The producer is the goroutine spawned by the question endpoint; the first
// consumer is the SSE handler streaming the answer to the browser. Later
// consumers are usually reconnects, and for them the complete answer from the
// session log is better than a partial stream.
type AnswerBroker struct {
	stopChannel      chan struct{}
	publishChannel   chan publication
	unpublishChannel chan string
	subscribeChannel chan subscription
}

// NewAnswerBroker creates the broker. Call Start in a goroutine and Stop to
// shut it down.
func NewAnswerBroker() *AnswerBroker {
	return &AnswerBroker{
		stopChannel:      make(chan struct{}),
		publishChannel:   make(chan publication),
		unpublishChannel: make(chan string),
		subscribeChannel: make(chan subscription),
	}
}

// Start listens for publish, unpublish, and subscribe events. It blocks until
// Stop is called, so it should run in a goroutine.
func (b *AnswerBroker) Start() {
	published := map[string]chan string{}
	subscribers := map[string][]chan chan string{}
	for {
		select {
		case <-b.stopChannel:
			return

		case sub := <-b.subscribeChannel:
			deltas := published[sub.sessionID]
			if deltas == nil {
				// No producer in flight; the closed handoff tells the
				// subscriber to read the persisted log instead.
				close(sub.handoff)
				break
			}
			existing := subscribers[sub.sessionID]
			if existing == nil {
				subscribers[sub.sessionID] = []chan chan string{sub.handoff}
				sub.handoff <- deltas
			} else {
				// Later subscribers wait for the producer to finish.
				subscribers[sub.sessionID] = append(existing, sub.handoff)
			}

		case pub := <-b.publishChannel:
			published[pub.sessionID] = pub.deltas

		case sessionID := <-b.unpublishChannel:
			if waiting := subscribers[sessionID]; len(waiting) > 1 {
				for _, handoff := range waiting[1:] {
					close(handoff)
				}
			}
			delete(published, sessionID)
			delete(subscribers, sessionID)
		}
	}
}

// Stop shuts down the broker goroutine.
func (b *AnswerBroker) Stop() {
	close(b.stopChannel)
}

// Subscribe returns a handoff channel that yields the producer's delta
// channel. If no answer is in flight, or another consumer already holds the
// stream, the handoff is closed without a value once the producer finishes.
func (b *AnswerBroker) Subscribe(sessionID string) chan chan string {
	handoff := make(chan chan string, 1)
	b.subscribeChannel <- subscription{
		sessionID: sessionID,
		handoff:   handoff,
	}
	return handoff
}

// Publish registers the delta channel for an in-flight answer. The producer
// should use an unbuffered channel so it blocks until a consumer attaches,
// with a timeout on its side if consumers are unreliable.
func (b *AnswerBroker) Publish(sessionID string, deltas chan string) {
	b.publishChannel <- publication{
		sessionID: sessionID,
		deltas:    deltas,
	}
}

// Unpublish removes the stream once the answer is complete and releases any
// waiting subscribers.
func (b *AnswerBroker) Unpublish(sessionID string) {
	b.unpublishChannel <- sessionID
}
