package app

import "sync"

// ChatQueue выполняет задачи одного чата строго в порядке Submit,
// разные чаты — параллельно. На чат с задачами работает одна горутина;
// когда очередь чата пустеет, запись удаляется.
type ChatQueue struct {
	mu      sync.Mutex
	byChat  map[int64][]func()
	wg      sync.WaitGroup
	onPanic func(chatID int64, p any)
}

func NewChatQueue(onPanic func(chatID int64, p any)) *ChatQueue {
	return &ChatQueue{byChat: make(map[int64][]func()), onPanic: onPanic}
}

// Submit ставит задачу в хвост очереди чата.
func (q *ChatQueue) Submit(chatID int64, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, running := q.byChat[chatID]
	q.byChat[chatID] = append(pending, job)
	if running {
		return
	}
	q.wg.Add(1)
	go q.drain(chatID)
}

func (q *ChatQueue) drain(chatID int64) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.byChat[chatID]
		if len(pending) == 0 {
			delete(q.byChat, chatID)
			q.mu.Unlock()
			return
		}
		job := pending[0]
		pending[0] = nil
		q.byChat[chatID] = pending[1:]
		q.mu.Unlock()

		q.run(chatID, job)
	}
}

func (q *ChatQueue) run(chatID int64, job func()) {
	defer func() {
		if p := recover(); p != nil && q.onPanic != nil {
			q.onPanic(chatID, p)
		}
	}()
	job()
}

// Active — число чатов с выполняющейся или ожидающей задачей.
func (q *ChatQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byChat)
}

// Wait ждёт, пока опустеют все очереди.
func (q *ChatQueue) Wait() { q.wg.Wait() }
