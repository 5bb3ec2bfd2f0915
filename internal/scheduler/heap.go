package scheduler

import "time"

// heapItem is one entry in the due-time min-heap: the monitor's scheduling
// key and the time at which it next becomes due.
type heapItem struct {
	key   string
	dueAt time.Time
	index int // maintained by container/heap
}

// priorityQueue is a container/heap.Interface ordering heapItems by
// dueAt ascending.
type priorityQueue []*heapItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].dueAt.Before(pq[j].dueAt)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
