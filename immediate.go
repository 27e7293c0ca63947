package rhi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gogpu/rhi/recording"
)

// ImmediateCommand is a backend call executed outside of any frame, in
// order with frame replay. Func runs on the goroutine that owns the
// graphics context; its error is stored in Err.
type ImmediateCommand struct {
	Name string
	Func func(recording.Backend) error
	Err  error
}

type immediateBatch struct {
	cmds []ImmediateCommand
}

// ExecImmediate runs cmds and waits for them to complete.
//
// Without a render thread, or when force is set, the commands run on the
// calling goroutine; a forced batch must not race with frame execution.
// Otherwise they are handed to the render goroutine through a
// single-slot mailbox: ExecImmediate waits for the slot to be free,
// publishes the batch and waits until the render goroutine has executed
// it. At most one batch is ever in flight.
//
// The returned error joins the errors of all failed commands.
func (c *Context) ExecImmediate(cmds []ImmediateCommand, force bool) error {
	if len(cmds) == 0 {
		return nil
	}
	if force {
		c.runImmediate(cmds)
		return immediateErr(cmds)
	}
	if !c.threaded.Load() {
		c.execMu.Lock()
		c.runImmediate(cmds)
		c.execMu.Unlock()
		return immediateErr(cmds)
	}

	batch := &immediateBatch{cmds: cmds}
	for {
		c.immMu.Lock()
		if c.immPending == nil {
			c.immPending = batch
			c.immMu.Unlock()
			break
		}
		c.immMu.Unlock()
		runtime.Gosched()
	}
	for {
		c.immMu.Lock()
		done := c.immPending != batch
		c.immMu.Unlock()
		if done {
			break
		}
		runtime.Gosched()
	}
	return immediateErr(cmds)
}

// drainImmediate executes the pending batch, if any. Called by the
// render goroutine between frames and periodically during replay.
func (c *Context) drainImmediate() {
	c.immMu.Lock()
	defer c.immMu.Unlock()
	if c.immPending == nil {
		return
	}
	c.runImmediate(c.immPending.cmds)
	c.immPending = nil
}

func (c *Context) hasPendingImmediate() bool {
	c.immMu.Lock()
	defer c.immMu.Unlock()
	return c.immPending != nil
}

func (c *Context) runImmediate(cmds []ImmediateCommand) {
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Func == nil {
			cmd.Err = fmt.Errorf("rhi: immediate command %q has no function", cmd.Name)
			continue
		}
		cmd.Err = cmd.Func(c.backend)
		if cmd.Err != nil {
			Logger().Warn("rhi: immediate command failed", "cmd", cmd.Name, "err", cmd.Err)
		}
	}
	c.stats.immediateBatches.Add(1)
}

func immediateErr(cmds []ImmediateCommand) error {
	var errs []error
	for _, cmd := range cmds {
		if cmd.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Name, cmd.Err))
		}
	}
	return errors.Join(errs...)
}

// immediate runs a single backend call through ExecImmediate.
func (c *Context) immediate(name string, fn func(recording.Backend) error) error {
	return c.ExecImmediate([]ImmediateCommand{{Name: name, Func: fn}}, false)
}
