/*
 * S2200 - Hardware node graph tests
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

package node

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// Test node which accepts any ancestor of a given category.
type testNode struct {
	Base
	parent  Category
	cleared int
}

func newTestNode(name string, category Category, parent Category) *testNode {
	return &testNode{Base: NewBase(name, category), parent: parent}
}

func (n *testNode) CanConnect(ancestor Node) bool {
	return ancestor.Category() == n.parent
}

func (n *testNode) Clear()      { n.cleared++ }
func (n *testNode) Initialize() {}
func (n *testNode) Terminate()  {}

func (n *testNode) Dump(out io.Writer) {
	n.DumpBase(out)
}

func TestConnectLowest(t *testing.T) {
	cm := newTestNode("CM0", ChannelModule, Processor)
	for i := range 3 {
		dev := newTestNode("DEV"+string(rune('0'+i)), Device, ChannelModule)
		addr, err := Connect(cm, dev)
		if err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if addr != i {
			t.Errorf("Connect address not correct got: %d expected: %d", addr, i)
		}
		if len(dev.Links().Ancestors()) != 1 {
			t.Errorf("Ancestor not recorded for %s", dev.Name())
		}
	}

	// Free address 1 and make sure it is reused.
	dev1 := cm.Links().Descendant(1)
	if err := Disconnect(cm, dev1); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if len(dev1.Links().Ancestors()) != 0 {
		t.Errorf("Ancestor not removed on disconnect")
	}
	dev := newTestNode("DEVX", Device, ChannelModule)
	addr, err := Connect(cm, dev)
	if err != nil || addr != 1 {
		t.Errorf("Connect reuse not correct got: %d %v expected: %d", addr, err, 1)
	}
}

func TestConnectErrors(t *testing.T) {
	iop := newTestNode("IOP0", Processor, CategoryNone)
	cm := newTestNode("CM0", ChannelModule, Processor)
	dev := newTestNode("DISK0", Device, ChannelModule)
	dev2 := newTestNode("DISK1", Device, ChannelModule)

	// Device can't connect to processor.
	if err := ConnectAt(iop, dev, 0); !errors.Is(err, ErrCannotConnect) {
		t.Errorf("Expected cannot connect got: %v", err)
	}

	if err := ConnectAt(iop, cm, 2); err != nil {
		t.Fatalf("ConnectAt failed: %v", err)
	}
	if err := ConnectAt(cm, dev, 5); err != nil {
		t.Fatalf("ConnectAt failed: %v", err)
	}
	if err := ConnectAt(cm, dev2, 5); !errors.Is(err, ErrAddressInUse) {
		t.Errorf("Expected address in use got: %v", err)
	}
	if err := ConnectAt(cm, dev, 6); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Expected already connected got: %v", err)
	}
	if err := ConnectAt(cm, dev2, -1); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected invalid address got: %v", err)
	}
	if err := Disconnect(cm, dev2); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected not connected got: %v", err)
	}
	if cm.Links().AddressOf(dev) != 5 {
		t.Errorf("AddressOf not correct got: %d expected: %d", cm.Links().AddressOf(dev), 5)
	}
}

func TestDisconnectAll(t *testing.T) {
	iop := newTestNode("IOP0", Processor, CategoryNone)
	cm := newTestNode("CM0", ChannelModule, Processor)
	dev := newTestNode("DISK0", Device, ChannelModule)
	_, _ = Connect(iop, cm)
	_, _ = Connect(cm, dev)
	DisconnectAll(cm)
	if len(iop.Links().Descendants()) != 0 {
		t.Errorf("IOP still has descendants")
	}
	if len(dev.Links().Ancestors()) != 0 {
		t.Errorf("Device still has ancestors")
	}
}

func TestDump(t *testing.T) {
	cm := newTestNode("CM0", ChannelModule, Processor)
	dev := newTestNode("DISK0", Device, ChannelModule)
	_ = ConnectAt(cm, dev, 3)
	var buf bytes.Buffer
	cm.Dump(&buf)
	out := buf.String()
	if !strings.Contains(out, "Node CM0 Category:ChannelModule") {
		t.Errorf("Dump header not correct got: %q", out)
	}
	if !strings.Contains(out, "[3]:DISK0") {
		t.Errorf("Dump descendants not correct got: %q", out)
	}
}
