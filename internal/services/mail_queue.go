package services

import (
	"context"
	"hoursrelay/internal/logger"
	"hoursrelay/internal/metrics"
	"sync"

	"go.uber.org/zap"
)

// MailQueue - очередь писем "по возможности": ошибки только логируются.
type MailQueue struct {
	sender Sender
	jobs   chan Message
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewMailQueue(sender Sender, size int) *MailQueue {
	if size <= 0 {
		size = 100
	}
	return &MailQueue{sender: sender, jobs: make(chan Message, size)}
}

// Start запускает n воркеров.
func (q *MailQueue) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				err := q.sender.Send(context.Background(), job)
				metrics.IncEmail(job.Template, err == nil)
				if err != nil {
					logger.Log.Error("Не удалось отправить письмо из очереди",
						zap.String("template", job.Template), zap.String("to", job.To), zap.Error(err))
				}
			}
		}()
	}
}

// Enqueue не блокирует: при переполненной или закрытой очереди письмо отбрасывается.
func (q *MailQueue) Enqueue(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		logger.Log.Warn("Очередь писем закрыта, письмо отброшено",
			zap.String("template", msg.Template), zap.String("to", msg.To))
		metrics.IncEmail(msg.Template, false)
		return false
	}
	select {
	case q.jobs <- msg:
		return true
	default:
		logger.Log.Warn("Очередь писем переполнена, письмо отброшено",
			zap.String("template", msg.Template), zap.String("to", msg.To))
		metrics.IncEmail(msg.Template, false)
		return false
	}
}

// Close закрывает очередь и ждёт, пока воркеры разберут остаток.
// Повторный вызов безопасен.
func (q *MailQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
