package transaction

import (
	"net"
	"sync"
	"time"

	"github.com/backkem/traverse/pkg/message"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxTrackedRequests bounds the inbound request table.
const maxTrackedRequests = 4096

// Verdict is the decision for one inbound request.
type Verdict struct {
	Disposition Disposition

	// Response holds the cached response bytes of an absorbed request, or
	// nil if the application has not answered yet.
	Response []byte
}

type requestKey struct {
	source string
	id     message.TransactionID
}

func newRequestKey(src net.Addr, id message.TransactionID) requestKey {
	k := requestKey{id: id}
	if src != nil {
		k.source = src.String()
	}
	return k
}

// requestTable remembers inbound requests for the retention window.
type requestTable struct {
	// mu makes lookup-then-add atomic; the LRU is safe on its own.
	mu      sync.Mutex
	entries *expirable.LRU[requestKey, []byte]
}

func newRequestTable(retention time.Duration) *requestTable {
	return &requestTable{
		entries: expirable.NewLRU[requestKey, []byte](maxTrackedRequests, nil, retention),
	}
}

// observe records key and reports whether it was seen before, with the
// cached response if any.
func (r *requestTable) observe(key requestKey) (seen bool, cached []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resp, ok := r.entries.Get(key); ok {
		return true, resp
	}
	r.entries.Add(key, nil)
	return false, nil
}

func (r *requestTable) record(key requestKey, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := make([]byte, len(raw))
	copy(buf, raw)
	r.entries.Add(key, buf)
}

func (r *requestTable) purge() {
	r.entries.Purge()
}
