// internal/finalize/progress.go
package finalize

import (
	"pos-device-service/internal/hardware"
	"pos-device-service/internal/utils"
)

// progress reports print progress as a fraction of all receipt lines
// printed in one finalize call
type progress struct {
	events  hardware.EventSink
	log     *utils.OperationLogger
	silent  bool
	started bool
	total   int
	done    int
}

func (p *progress) publish(eventType hardware.EventType, message string) {
	if p.silent {
		return
	}
	e := hardware.NewEvent(eventType, 0, message)
	if p.total > 0 {
		e.Progress = float64(p.done) / float64(p.total)
	}
	p.events.Publish(e)
}

func (p *progress) start(total int) {
	p.total, p.done, p.started = total, 0, true
	p.publish(hardware.EventReceiptPrintStart, "")
}

func (p *progress) step(lines int, message string) {
	p.done += lines
	if p.done > p.total {
		p.done = p.total
	}
	if p.log != nil && p.total > 0 {
		p.log.Progress("Receipt print progress", float64(p.done)/float64(p.total))
	}
	p.publish(hardware.EventReceiptPrintStep, message)
}

func (p *progress) end() {
	if !p.started {
		return
	}
	p.started = false
	p.publish(hardware.EventReceiptPrintEnd, "")
}
