package world

import "agentarena/pkg/wire"

// eventRing keeps the last N non-position events for late joiners. Slots
// are overwritten in place; total counts lifetime writes.
type eventRing struct {
	slots []*wire.Message
	w     int
	total uint64
}

func newEventRing(size int) *eventRing {
	return &eventRing{slots: make([]*wire.Message, size)}
}

func (r *eventRing) push(msg *wire.Message) {
	r.slots[r.w] = msg
	r.w = (r.w + 1) % len(r.slots)
	r.total++
}

// scan walks oldest to newest, filtering by timestamp and whisper
// visibility. limit <= 0 means no clamp.
func (r *eventRing) scan(sinceTs int64, limit int, forAgent string) []*wire.Message {
	n := len(r.slots)
	count := int(r.total)
	if count > n {
		count = n
	}
	start := (r.w - count + n) % n
	var out []*wire.Message
	for i := 0; i < count; i++ {
		msg := r.slots[(start+i)%n]
		if msg == nil || msg.Timestamp <= sinceTs {
			continue
		}
		if msg.Type == wire.TypeWhisper {
			if forAgent == "" || (msg.AgentID != forAgent && msg.TargetID != forAgent) {
				continue
			}
		}
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
