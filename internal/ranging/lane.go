package ranging

import (
	"fmt"
	"rtb-engine/internal/models"
)

// lane runs the events of one peer in submission order on a single
// goroutine. A lane without pending events is dropped.
type lane struct {
	queue   []func()
	running bool
}

func (d *Dispatcher) post(peer models.PeerAddress, event func()) {
	d.laneMu.Lock()
	defer d.laneMu.Unlock()

	l, ok := d.lanes[peer]
	if !ok {
		l = &lane{}
		d.lanes[peer] = l
	}
	l.queue = append(l.queue, event)

	if !l.running {
		l.running = true
		d.running++
		go d.drain(peer, l)
	}
}

func (d *Dispatcher) drain(peer models.PeerAddress, l *lane) {
	for {
		d.laneMu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			delete(d.lanes, peer)
			d.running--
			if d.running == 0 {
				d.idle.Broadcast()
			}
			d.laneMu.Unlock()
			return
		}
		event := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		d.laneMu.Unlock()

		d.run(peer, event)
	}
}

func (d *Dispatcher) run(peer models.PeerAddress, event func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Str("peer", peer.String()).
				Err(fmt.Errorf("%v", r)).
				Msg("Recovered from panic in peer event")
		}
	}()
	event()
}

// Flush blocks until every queued event has run. Events posted while Flush
// waits, from timers or radio completions, are waited for as well.
func (d *Dispatcher) Flush() {
	d.laneMu.Lock()
	defer d.laneMu.Unlock()

	for d.running > 0 {
		d.idle.Wait()
	}
}
