package liveness

import (
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
)

// commandQueueCapacity is the FIFO bound from spec.md §4.2: overflow
// drops the oldest entry with a warning, except shutdown, which is
// durable (spec.md §9).
const commandQueueCapacity = 32

// commandQueue is a bounded FIFO of pending commands for one device.
type commandQueue struct {
	items []protocol.Command
}

func newCommandQueue() *commandQueue {
	return &commandQueue{items: make([]protocol.Command, 0, commandQueueCapacity)}
}

func (q *commandQueue) push(cmd protocol.Command) {
	if len(q.items) >= commandQueueCapacity {
		if q.items[0].Type == protocol.CommandShutdown {
			// shutdown is durable: drop the newest arrival instead of
			// evicting it.
			log.Warn("command queue full, dropping incoming command in favor of durable shutdown")
			return
		}
		log.Warn("command queue full, dropping oldest command:", q.items[0].Type)
		q.items = q.items[1:]
	}
	q.items = append(q.items, cmd)
}

func (q *commandQueue) pop() (protocol.Command, bool) {
	if len(q.items) == 0 {
		return protocol.Command{}, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}
