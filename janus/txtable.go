package janus

import (
	"sync"

	"github.com/go-janus/janus/internal/ringbuf"
)

// transactionTable wraps a bounded transaction-id -> routing-path map with
// its own locking, as required of the TransactionTable component: it is
// read from the demultiplexer goroutine and written from every goroutine
// issuing a request.
type transactionTable struct {
	mu sync.Mutex
	m  *ringbuf.Map[string, string]
}

func newTransactionTable(capacity int) *transactionTable {
	return &transactionTable{m: ringbuf.New[string, string](capacity)}
}

func (t *transactionTable) Register(txID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.Put(txID, path)
}

func (t *transactionTable) Lookup(txID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m.Get(txID)
}

func (t *transactionTable) Delete(txID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m.Delete(txID)
}
