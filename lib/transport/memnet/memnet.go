// Package memnet is an in-process network of routers.
//
// Every attached node owns an unbounded inbound queue drained by a single
// goroutine, so messages from one sender arrive in the order they were sent.
// Links can be cut to simulate unreachable peers.
package memnet

import (
	"sync"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-onionpath/lib/common/keys"
	"github.com/go-i2p/go-onionpath/lib/transport"
)

var log = logger.GetGoI2PLogger()

// Network connects nodes by router ID.
type Network struct {
	mu    sync.RWMutex
	nodes map[keys.RouterID]*Node
	cut   map[link]struct{}
}

type link struct {
	from, to keys.RouterID
}

type envelope struct {
	from keys.RouterID
	data []byte
}

// NewNetwork returns an empty network.
func NewNetwork() *Network {
	return &Network{
		nodes: make(map[keys.RouterID]*Node),
		cut:   make(map[link]struct{}),
	}
}

// Attach adds a node for id. Attaching the same id twice is an error.
func (n *Network) Attach(id keys.RouterID) (*Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nodes[id]; ok {
		return nil, oops.Errorf("router %s already attached", id.Short())
	}
	node := &Node{id: id, net: n, done: make(chan struct{})}
	node.cond = sync.NewCond(&node.mu)
	n.nodes[id] = node
	go node.deliver()
	return node, nil
}

// Cut makes messages from a to b fail with ErrRouteUnavailable.
func (n *Network) Cut(a, b keys.RouterID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cut[link{a, b}] = struct{}{}
}

// Heal undoes Cut.
func (n *Network) Heal(a, b keys.RouterID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cut, link{a, b})
}

func (n *Network) route(from, to keys.RouterID) (*Node, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if _, ok := n.cut[link{from, to}]; ok {
		return nil, transport.ErrRouteUnavailable
	}
	node, ok := n.nodes[to]
	if !ok {
		return nil, transport.ErrRouteUnavailable
	}
	return node, nil
}

func (n *Network) detach(id keys.RouterID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, id)
}

// Compile-time check that Node implements transport.Transport
var _ transport.Transport = (*Node)(nil)

// Node is one router's attachment to a Network.
type Node struct {
	id  keys.RouterID
	net *Network

	mu      sync.Mutex
	cond    *sync.Cond
	inbox   []envelope
	handler transport.Handler
	closed  bool

	done chan struct{}

	sent, received uint64
}

// ID returns the router this node belongs to.
func (nd *Node) ID() keys.RouterID { return nd.id }

// SendRaw queues a copy of data on the destination's inbound queue.
func (nd *Node) SendRaw(to keys.RouterID, data []byte) error {
	nd.mu.Lock()
	closed := nd.closed
	nd.mu.Unlock()
	if closed {
		return transport.ErrTransportClosed
	}
	dst, err := nd.net.route(nd.id, to)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":   "(Node) SendRaw",
			"from": nd.id.Short(),
			"to":   to.Short(),
		}).Debug("no route")
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	if err := dst.enqueue(envelope{from: nd.id, data: buf}); err != nil {
		return err
	}
	nd.mu.Lock()
	nd.sent++
	nd.mu.Unlock()
	return nil
}

// SetHandler installs the inbound callback. Messages that arrive with no
// handler installed are dropped.
func (nd *Node) SetHandler(h transport.Handler) {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	nd.handler = h
}

// Stats returns the number of messages sent and delivered by this node.
func (nd *Node) Stats() (sent, received uint64) {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	return nd.sent, nd.received
}

// Close detaches the node and stops delivery once the queue has drained.
func (nd *Node) Close() error {
	nd.mu.Lock()
	if nd.closed {
		nd.mu.Unlock()
		return nil
	}
	nd.closed = true
	nd.cond.Broadcast()
	nd.mu.Unlock()
	nd.net.detach(nd.id)
	<-nd.done
	return nil
}

func (nd *Node) enqueue(e envelope) error {
	nd.mu.Lock()
	defer nd.mu.Unlock()
	if nd.closed {
		return transport.ErrRouteUnavailable
	}
	nd.inbox = append(nd.inbox, e)
	nd.cond.Signal()
	return nil
}

func (nd *Node) deliver() {
	defer close(nd.done)
	for {
		nd.mu.Lock()
		for len(nd.inbox) == 0 && !nd.closed {
			nd.cond.Wait()
		}
		if len(nd.inbox) == 0 {
			nd.mu.Unlock()
			return
		}
		e := nd.inbox[0]
		nd.inbox[0] = envelope{}
		nd.inbox = nd.inbox[1:]
		h := nd.handler
		if h != nil {
			nd.received++
		}
		nd.mu.Unlock()
		if h != nil {
			h(e.from, e.data)
		}
	}
}
