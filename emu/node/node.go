/*
 * S2200 - Hardware node graph
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
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type Category int

// Node categories.
const (
	CategoryNone  Category = 0
	Processor     Category = 1
	ChannelModule Category = 2
	Device        Category = 4
)

func (c Category) String() string {
	switch c {
	case Processor:
		return "Processor"
	case ChannelModule:
		return "ChannelModule"
	case Device:
		return "Device"
	}
	return "None"
}

var (
	ErrCannotConnect    = errors.New("node can not connect to ancestor")
	ErrAddressInUse     = errors.New("descendant address in use")
	ErrAlreadyConnected = errors.New("nodes already connected")
	ErrNotConnected     = errors.New("nodes not connected")
	ErrInvalidAddress   = errors.New("invalid descendant address")
)

// Node is any piece of hardware which can be placed in the graph.
type Node interface {
	Name() string
	Category() Category
	CanConnect(ancestor Node) bool // Can this node be a descendant of ancestor.
	Clear()                        // Return to cleared state at session start.
	Initialize()                   // Called once when configuration built.
	Terminate()                    // Called before configuration torn down.
	Dump(out io.Writer)            // Write state for debugging.
	Links() *Links                 // Graph bookkeeping.
}

// Links holds ancestors and descendants of a node.
type Links struct {
	mu          sync.Mutex
	ancestors   map[Node]struct{}
	descendants map[int]Node
}

// Base is embedded by all concrete nodes.
type Base struct {
	name     string
	category Category
	links    Links
}

func NewBase(name string, category Category) Base {
	return Base{
		name:     name,
		category: category,
		links: Links{
			ancestors:   map[Node]struct{}{},
			descendants: map[int]Node{},
		},
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Category() Category {
	return b.category
}

func (b *Base) Links() *Links {
	return &b.links
}

// Return ancestors sorted by name.
func (l *Links) Ancestors() []Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]Node, 0, len(l.ancestors))
	for n := range l.ancestors {
		result = append(result, n)
	}
	slices.SortFunc(result, func(a, b Node) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return result
}

// Return copy of descendant map.
func (l *Links) Descendants() map[int]Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make(map[int]Node, len(l.descendants))
	for addr, n := range l.descendants {
		result[addr] = n
	}
	return result
}

// Return descendant at address or nil.
func (l *Links) Descendant(addr int) Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.descendants[addr]
}

// Return sorted list of descendant addresses.
func (l *Links) Addresses() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]int, 0, len(l.descendants))
	for addr := range l.descendants {
		result = append(result, addr)
	}
	slices.Sort(result)
	return result
}

// Find address of descendant, -1 if not connected.
func (l *Links) AddressOf(descendant Node) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for addr, n := range l.descendants {
		if n == descendant {
			return addr
		}
	}
	return -1
}

func (l *Links) hasAncestor(n Node) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ancestors[n]
	return ok
}

// Connect descendant at lowest free address of ancestor.
func Connect(ancestor Node, descendant Node) (int, error) {
	links := ancestor.Links()
	links.mu.Lock()
	addr := 0
	for {
		if _, used := links.descendants[addr]; !used {
			break
		}
		addr++
	}
	links.mu.Unlock()
	return addr, ConnectAt(ancestor, descendant, addr)
}

// Connect descendant at given address of ancestor.
func ConnectAt(ancestor Node, descendant Node, addr int) error {
	if addr < 0 {
		return errors.Wrapf(ErrInvalidAddress, "%s address %d", ancestor.Name(), addr)
	}

	if !descendant.CanConnect(ancestor) {
		return errors.Wrapf(ErrCannotConnect, "%s to %s", descendant.Name(), ancestor.Name())
	}

	if descendant.Links().hasAncestor(ancestor) {
		return errors.Wrapf(ErrAlreadyConnected, "%s to %s", descendant.Name(), ancestor.Name())
	}

	links := ancestor.Links()
	links.mu.Lock()
	if _, used := links.descendants[addr]; used {
		links.mu.Unlock()
		return errors.Wrapf(ErrAddressInUse, "%s address %d", ancestor.Name(), addr)
	}
	links.descendants[addr] = descendant
	links.mu.Unlock()

	dlinks := descendant.Links()
	dlinks.mu.Lock()
	dlinks.ancestors[ancestor] = struct{}{}
	dlinks.mu.Unlock()
	return nil
}

// Remove link between ancestor and descendant.
func Disconnect(ancestor Node, descendant Node) error {
	if !descendant.Links().hasAncestor(ancestor) {
		return errors.Wrapf(ErrNotConnected, "%s from %s", descendant.Name(), ancestor.Name())
	}

	links := ancestor.Links()
	links.mu.Lock()
	for addr, n := range links.descendants {
		if n == descendant {
			delete(links.descendants, addr)
		}
	}
	links.mu.Unlock()

	dlinks := descendant.Links()
	dlinks.mu.Lock()
	delete(dlinks.ancestors, ancestor)
	dlinks.mu.Unlock()
	return nil
}

// Remove node from all ancestors and descendants.
func DisconnectAll(n Node) {
	for _, ancestor := range n.Links().Ancestors() {
		_ = Disconnect(ancestor, n)
	}
	for _, descendant := range n.Links().Descendants() {
		_ = Disconnect(n, descendant)
	}
}

// Write common node information.
func (b *Base) DumpBase(out io.Writer) {
	fmt.Fprintf(out, "Node %s Category:%s\n", b.name, b.category)
	fmt.Fprint(out, "  Ancestors:")
	for _, a := range b.links.Ancestors() {
		fmt.Fprint(out, " "+a.Name())
	}
	fmt.Fprint(out, "\n  Descendants:")
	descendants := b.links.Descendants()
	for _, addr := range b.links.Addresses() {
		if d, ok := descendants[addr]; ok {
			fmt.Fprintf(out, " [%d]:%s", addr, d.Name())
		}
	}
	fmt.Fprintln(out)
}
