/*
 * S2200 - Full screen operator console
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package gui is a full screen operator console. The console view shows
// system console output and command results, the status view shows status
// lines and outstanding read reply messages, commands are typed on the
// input line.
package gui

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/jroimartin/gocui"
	"github.com/pkg/errors"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/command/parser"
	"github.com/rcornwell/S2200/emu/console"
)

const (
	consoleView = "console"
	statusView  = "status"
	inputView   = "input"
	statusLines = 4
)

// Gui shows a buffered console on screen.
type Gui struct {
	*console.Buffered
	g    *gocui.Gui
	sys  *command.System
	next int // Next console line to draw.
}

var _ console.Console = (*Gui)(nil)

func New(sys *command.System) *Gui {
	return &Gui{Buffered: sys.Console, sys: sys}
}

// Run the screen until the operator quits.
func (c *Gui) Run() error {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return errors.Wrap(err, "unable to start gui")
	}
	defer g.Close()
	c.g = g
	c.next = 0

	g.Cursor = true
	g.SetManagerFunc(c.layout)

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, quit); err != nil {
		return err
	}
	if err := g.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, c.enter); err != nil {
		return err
	}

	c.Buffered.SetNotify(c.refresh)
	defer c.Buffered.SetNotify(nil)

	err = g.MainLoop()
	if err != nil && !errors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

func quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

// Place the three views.
func (c *Gui) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	split := maxY - statusLines - 5

	v, err := g.SetView(consoleView, 0, 0, maxX-1, split)
	if err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Console"
		v.Autoscroll = true
		v.Wrap = true
		c.drawConsole(v)
	}

	v, err = g.SetView(statusView, 0, split+1, maxX-1, split+statusLines+2)
	if err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Status"
		c.drawStatus(v)
	}

	v, err = g.SetView(inputView, 0, maxY-3, maxX-1, maxY-1)
	if err != nil {
		if !errors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		v.Title = "Command"
		v.Editable = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}
	return nil
}

// Called by the buffered console when anything changes.
func (c *Gui) refresh() {
	c.g.Update(func(g *gocui.Gui) error {
		if v, err := g.View(consoleView); err == nil {
			c.drawConsole(v)
		}
		if v, err := g.View(statusView); err == nil {
			c.drawStatus(v)
		}
		return nil
	})
}

// Append lines posted since last draw.
func (c *Gui) drawConsole(v *gocui.View) {
	var lines []string
	lines, c.next = c.Lines(c.next)
	for _, l := range lines {
		fmt.Fprintln(v, l)
	}
}

// Redraw status lines and outstanding read replies.
func (c *Gui) drawStatus(v *gocui.View) {
	v.Clear()
	for _, l := range c.Status() {
		fmt.Fprintln(v, l)
	}
	pending := c.Pending()
	ids := make([]int, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(v, "%d-%s\n", id, pending[id])
	}
}

// Run command typed on input line.
func (c *Gui) enter(g *gocui.Gui, v *gocui.View) error {
	text := strings.TrimSpace(v.Buffer())
	v.Clear()
	_ = v.SetCursor(0, 0)
	_ = v.SetOrigin(0, 0)
	if text == "" {
		return nil
	}

	var out bytes.Buffer
	sys := *c.sys
	sys.Out = &out
	done, err := parser.ProcessCommand(text, &sys)

	cv, verr := g.View(consoleView)
	if verr != nil {
		return verr
	}
	fmt.Fprintln(cv, "> "+text)
	_, _ = cv.Write(out.Bytes())
	if err != nil {
		fmt.Fprintln(cv, "Error: "+err.Error())
	}
	if done {
		return gocui.ErrQuit
	}
	return nil
}
