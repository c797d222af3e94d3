package editsession

import (
	"context"
	"errors"
	"time"

	"ai-notetaking-editor/internal/pkg/logger"
	"ai-notetaking-editor/pkg/events"
	"ai-notetaking-editor/pkg/gateway"
	"ai-notetaking-editor/pkg/lexical"
	"ai-notetaking-editor/pkg/schedule"
)

// ContentSync debounces persistence of buffer snapshots. At most one save is
// in flight; changes that land meanwhile collapse into a single follow-up.
type ContentSync struct {
	ctx        context.Context
	loop       *schedule.Loop
	clock      schedule.Clock
	timer      *schedule.Timer
	store      *Store
	gateway    gateway.PersistenceGateway
	signals    events.Signals
	logger     logger.ILogger
	documentID string
	debounce   time.Duration
	timeout    time.Duration

	pending   []byte // canonical JSON of the newest snapshot
	lastSaved []byte
	inflight  bool
	followUp  bool
	gen       uint64
	idle      []func()
}

func newContentSync(ctx context.Context, loop *schedule.Loop, clock schedule.Clock, store *Store, gw gateway.PersistenceGateway,
	signals events.Signals, log logger.ILogger, documentID string, debounce, timeout time.Duration) *ContentSync {
	return &ContentSync{
		ctx:        ctx,
		loop:       loop,
		clock:      clock,
		timer:      schedule.NewTimer(loop, clock),
		store:      store,
		gateway:    gw,
		signals:    signals,
		logger:     log,
		documentID: documentID,
		debounce:   debounce,
		timeout:    timeout,
	}
}

// Baseline records the snapshot the document was opened with as already saved.
func (c *ContentSync) Baseline(snapshot lexical.LexicalRoot) error {
	canonical, err := lexical.Canonical(snapshot)
	if err != nil {
		return err
	}
	c.pending = canonical
	c.lastSaved = canonical
	return nil
}

// NotifyChanged records the newest snapshot and restarts the idle timer.
func (c *ContentSync) NotifyChanged(snapshot lexical.LexicalRoot) {
	canonical, err := lexical.Canonical(snapshot)
	if err != nil {
		c.logger.Error("ContentSync", "Failed to serialize snapshot", map[string]interface{}{
			"document_id": c.documentID,
			"error":       err.Error(),
		})
		return
	}
	c.pending = canonical
	c.store.MarkEdited(!lexical.Equal(canonical, c.lastSaved), c.clock.Now())
	c.timer.Arm(c.debounce, c.Flush)
}

// Flush saves the pending snapshot if it differs from the last saved one.
// While a save is in flight it only marks that a follow-up is needed.
func (c *ContentSync) Flush() {
	if c.inflight {
		c.followUp = true
		return
	}
	if c.pending == nil || lexical.Equal(c.pending, c.lastSaved) {
		if c.store.Snapshot().Save.Dirty {
			c.store.SaveSkipped()
		}
		c.notifyIdle()
		return
	}

	snapshot := c.pending
	gen := c.gen
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	documentID := c.documentID
	save := c.gateway

	err := c.loop.Go(func() func() {
		err := save.Save(ctx, documentID, snapshot)
		cancel()
		return func() { c.finish(gen, snapshot, err) }
	})
	if err != nil {
		cancel()
		c.logger.Warn("ContentSync", "Save not started", map[string]interface{}{
			"document_id": c.documentID,
			"error":       err.Error(),
		})
		return
	}

	c.inflight = true
	c.store.SaveStarted()
	c.logger.Debug("ContentSync", "Save started", map[string]interface{}{
		"document_id": c.documentID,
		"bytes":       len(snapshot),
	})
}

// FlushNow skips the remaining debounce.
func (c *ContentSync) FlushNow() {
	c.timer.Disarm()
	c.Flush()
}

func (c *ContentSync) finish(gen uint64, snapshot []byte, err error) {
	if gen != c.gen {
		return
	}
	c.inflight = false

	if err != nil {
		c.store.SaveFailed(err)
		details := map[string]interface{}{
			"document_id": c.documentID,
			"error":       err.Error(),
		}
		if errors.Is(err, context.DeadlineExceeded) {
			details["timeout"] = c.timeout.String()
		}
		c.logger.Warn("ContentSync", "Save failed", details)
		c.signals.DocumentSaveFailed(c.ctx, err)
	} else {
		c.lastSaved = snapshot
		fp := lexical.Fingerprint(snapshot)
		c.store.SaveSucceeded(fp, c.clock.Now(), !lexical.Equal(c.pending, snapshot))
		c.logger.Info("ContentSync", "Document saved", map[string]interface{}{
			"document_id": c.documentID,
			"fingerprint": fp,
		})
		c.signals.DocumentSaved(c.ctx, fp)
	}

	// A failed save is not retried, but a follow-up carries newer content.
	if c.followUp {
		c.followUp = false
		c.Flush()
		return
	}
	c.notifyIdle()
}

// Idle reports that nothing is scheduled or in flight.
func (c *ContentSync) Idle() bool {
	return !c.inflight && !c.followUp && !c.timer.Armed()
}

// whenIdle runs fn once the scheduler is idle, immediately if it already is.
func (c *ContentSync) whenIdle(fn func()) {
	if c.Idle() {
		fn()
		return
	}
	c.idle = append(c.idle, fn)
}

func (c *ContentSync) notifyIdle() {
	if !c.Idle() {
		return
	}
	waiting := c.idle
	c.idle = nil
	for _, fn := range waiting {
		fn()
	}
}

// stop drops the timer and makes any in-flight result stale.
func (c *ContentSync) stop() {
	c.timer.Disarm()
	c.gen++
	c.inflight = false
	c.followUp = false
	c.notifyIdle()
}
