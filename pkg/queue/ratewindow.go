package queue

// rateWindow is a per-agent sliding window over command timestamps. Stamps
// are appended at the tail; head advances past expired entries instead of
// reslicing on every call, and the backing array compacts once the dead
// prefix grows.
type rateWindow struct {
	stamps    []int64
	head      int
	lastTouch int64
}

const compactThreshold = 64

// countSince advances head past stamps older than cutoff and returns the
// live count.
func (w *rateWindow) countSince(cutoff int64) int {
	for w.head < len(w.stamps) && w.stamps[w.head] <= cutoff {
		w.head++
	}
	if w.head >= compactThreshold {
		w.stamps = append(w.stamps[:0], w.stamps[w.head:]...)
		w.head = 0
	}
	return len(w.stamps) - w.head
}

func (w *rateWindow) push(ts int64) {
	w.stamps = append(w.stamps, ts)
	w.lastTouch = ts
}

// overLimit reports whether the agent has exhausted the window and, if so,
// how long until the oldest live stamp expires. Must be called with the
// queue lock held.
func (q *Queue) overLimit(agentID string, nowMs int64) (bool, int64) {
	w := q.windows[agentID]
	if w == nil {
		return false, 0
	}
	w.lastTouch = nowMs
	if w.countSince(nowMs-q.windowMs) < q.limit {
		return false, 0
	}
	retry := w.stamps[w.head] + q.windowMs - nowMs
	if retry < 1 {
		retry = 1
	}
	return true, retry
}

// record registers an accepted command in the agent's window.
func (q *Queue) record(agentID string, nowMs int64) {
	w := q.windows[agentID]
	if w == nil {
		w = &rateWindow{}
		q.windows[agentID] = w
	}
	w.push(nowMs)
}
