package worker

import (
	"errors"
	"sync"

	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

var ErrWorkersTerminated = errors.New("workers terminated")

type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	quit           chan struct{}
	quitOnce       sync.Once
	do             WorkerHandler
	waiter         *sync.WaitGroup
}

// NewWorkerManager
// is a job manager based on go routines. Define the number of internal
// workers and publish jobs with Enqueue or TryEnqueue; jobs are distributed
// among the pool. Workers keep listening until Exit is called. A passed
// jobChannel is never closed by the manager because other producers may
// still hold it.
func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		quit:           make(chan struct{}),
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	if w.jobChannel == nil {
		return 0
	}
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue
// publishes a job onto the channel, blocking while the buffer is full
func (w *WorkerManager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// TryEnqueue publishes a job only if the buffer has room.
func (w *WorkerManager) TryEnqueue(val interface{}) bool {
	select {
	case w.jobChannel <- val:
		return true
	default:
		return false
	}
}

// Start
// starts off the workers as many as defined by w.numberOfWorker and blocks
// until Exit is called. Jobs still buffered at exit are drained first.
func (w *WorkerManager) Start() error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.run(index, job)
				case <-w.quit:
					w.drain(index)
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrWorkersTerminated
}

func (w *WorkerManager) drain(index int) {
	for {
		select {
		case job := <-w.jobChannel:
			w.run(index, job)
		default:
			return
		}
	}
}

func (w *WorkerManager) run(index int, job interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker job panicked", "worker", index, "panic", r)
		}
	}()
	w.do(index, job)
}

// Exit
// signals every worker to stop after the buffered jobs are handled
func (w *WorkerManager) Exit() {
	w.quitOnce.Do(func() {
		logger.Info("Exit() is called and worker manager is going to be shutdown")
		close(w.quit)
	})
}
