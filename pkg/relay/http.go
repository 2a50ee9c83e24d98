package relay

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pierrec/lz4/v4"

	"agentarena/pkg/metrics"
	"agentarena/pkg/wire"
)

const (
	httpBatchSize  = 64
	httpFlushEvery = 250 * time.Millisecond
	httpTimeout    = 3 * time.Second
	relayBuffer    = 1024
)

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// httpPublisher ships LZ4-compressed JSON batches to a remote endpoint.
type httpPublisher struct {
	url     string
	client  *http.Client
	ch      chan *wire.Message
	dropped atomic.Uint64
	errlog  func(format string, v ...any)
}

func newHTTPPublisher(url string, errlog func(format string, v ...any)) *httpPublisher {
	return &httpPublisher{
		url:    url,
		client: &http.Client{Timeout: httpTimeout},
		ch:     make(chan *wire.Message, relayBuffer),
		errlog: errlog,
	}
}

func (p *httpPublisher) Publish(msg *wire.Message) {
	select {
	case p.ch <- msg:
	default:
		p.dropped.Add(1)
		metrics.RelayDropped.Inc()
	}
}

func (p *httpPublisher) Dropped() uint64 { return p.dropped.Load() }

func (p *httpPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(httpFlushEvery)
	defer ticker.Stop()
	batch := make([]*wire.Message, 0, httpBatchSize)
	for {
		select {
		case <-ctx.Done():
			p.flush(batch)
			return ctx.Err()
		case msg := <-p.ch:
			batch = append(batch, msg)
			if len(batch) >= httpBatchSize {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (p *httpPublisher) flush(batch []*wire.Message) {
	if len(batch) == 0 {
		return
	}
	data, err := json.Marshal(batch)
	if err != nil {
		p.drop(len(batch))
		p.errlog("relay: encode batch: %v", err)
		return
	}
	body := compressLZ4(data)
	resp, err := p.client.Post(p.url, "application/octet-stream", bytes.NewReader(body))
	if err != nil {
		p.drop(len(batch))
		p.errlog("relay: post %s: %v", p.url, err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		p.drop(len(batch))
		p.errlog("relay: post %s: status %d", p.url, resp.StatusCode)
	}
}

func (p *httpPublisher) drop(n int) {
	p.dropped.Add(uint64(n))
	metrics.RelayDropped.Add(float64(n))
}

// compressLZ4 frames src with a pooled buffer and returns a tight copy.
func compressLZ4(src []byte) []byte {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer bufferPool.Put(buf)
	buf.Reset()

	w := lz4.NewWriter(buf)
	w.Write(src)
	w.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}

// DecompressLZ4 is the inverse framing, for peers and tests.
func DecompressLZ4(src []byte) []byte {
	r := lz4.NewReader(bytes.NewReader(src))
	var out bytes.Buffer
	out.ReadFrom(r)
	return out.Bytes()
}
