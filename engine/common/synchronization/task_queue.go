package synchronization

import (
	"time"

	"github.com/google/btree"
)

const taskQueueDegree = 8

type scheduledTask struct {
	at   time.Time
	seq  uint64
	task RequestTask
}

func lessScheduled(a, b scheduledTask) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.seq < b.seq
}

// TaskQueue holds request tasks ordered by the time they are due. Tasks due
// at the same time come out in the order they were scheduled.
type TaskQueue struct {
	tree *btree.BTreeG[scheduledTask]
	seq  uint64
	now  func() time.Time
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tree: btree.NewG[scheduledTask](taskQueueDegree, lessScheduled),
		now:  time.Now,
	}
}

// ScheduleIn schedules the task to be due after the delay.
func (q *TaskQueue) ScheduleIn(task RequestTask, delay time.Duration) {
	q.seq++
	q.tree.ReplaceOrInsert(scheduledTask{
		at:   q.now().Add(delay),
		seq:  q.seq,
		task: task,
	})
}

// PopDue removes and returns the earliest task if it is due.
func (q *TaskQueue) PopDue() (RequestTask, bool) {
	next, ok := q.tree.Min()
	if !ok || next.at.After(q.now()) {
		return RequestTask{}, false
	}
	q.tree.DeleteMin()
	return next.task, true
}

// NextDue returns the time until the earliest task is due, zero if it already
// is. The second return value is false if the queue is empty.
func (q *TaskQueue) NextDue() (time.Duration, bool) {
	next, ok := q.tree.Min()
	if !ok {
		return 0, false
	}
	wait := next.at.Sub(q.now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func (q *TaskQueue) Len() int {
	return q.tree.Len()
}
