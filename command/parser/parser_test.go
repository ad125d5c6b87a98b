/*
 * S2200 - Operator command tests
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

package parser

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/emu/cdb"
	"github.com/rcornwell/S2200/emu/channel"
	"github.com/rcornwell/S2200/emu/console"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/util/logger"
)

func testSystem(t *testing.T) (*command.System, *bytes.Buffer) {
	t.Helper()
	inv := inventory.New()
	t.Cleanup(inv.ClearConfiguration)
	if _, err := inv.AddSystemProcessor("SP0", 0); err != nil {
		t.Fatalf("SP0: %v", err)
	}
	if _, err := inv.AddMainStorageProcessor("MSP0", 1, 0); err != nil {
		t.Fatalf("MSP0: %v", err)
	}
	if _, err := inv.AddInputOutputProcessor("IOP0", 3); err != nil {
		t.Fatalf("IOP0: %v", err)
	}
	if _, err := inv.CreateChannelModule(3, 0, channel.Byte, "CM0"); err != nil {
		t.Fatalf("CM0: %v", err)
	}
	if _, err := inv.AddScratchDisk("DISK0", "CM0", 0); err != nil {
		t.Fatalf("DISK0: %v", err)
	}
	out := &bytes.Buffer{}
	sys := &command.System{
		Inv:      inv,
		Console:  console.NewBuffered(),
		Bank:     cdb.New(),
		Appender: logger.NewAppender(10),
		Out:      out,
	}
	return sys, out
}

func run(t *testing.T, sys *command.System, text string) error {
	t.Helper()
	quit, err := ProcessCommand(text, sys)
	if quit {
		t.Errorf("%s asked to quit", text)
	}
	return err
}

func TestMatchCommand(t *testing.T) {
	if len(matchList("sh")) != 1 {
		t.Errorf("sh did not match show")
	}
	if len(matchList("s")) != 0 {
		t.Errorf("s matched below minimum")
	}
	if len(matchList("showing")) != 0 {
		t.Errorf("showing matched show")
	}
	if len(matchList("j")) != 1 {
		t.Errorf("j did not match jump")
	}

	sys, _ := testSystem(t)
	_, err := ProcessCommand("bogus", sys)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Unknown command error not correct got: %v", err)
	}
	quit, err := ProcessCommand("quit", sys)
	if !quit || err != nil {
		t.Errorf("Quit not correct got: %v %v", quit, err)
	}
	quit, err = ProcessCommand("   # comment", sys)
	if quit || err != nil {
		t.Errorf("Comment line not ignored got: %v %v", quit, err)
	}
}

func TestShow(t *testing.T) {
	sys, out := testSystem(t)
	if err := run(t, sys, "show inventory"); err != nil {
		t.Fatalf("show inventory failed: %v", err)
	}
	for _, name := range []string{"SP0", "MSP0", "IOP0", "CM0", "DISK0"} {
		if !strings.Contains(out.String(), name) {
			t.Errorf("Inventory missing %s got: %s", name, out.String())
		}
	}

	out.Reset()
	if err := run(t, sys, "sh co"); err == nil {
		t.Errorf("Ambiguous show accepted")
	}
	if err := run(t, sys, "show counters"); err != nil {
		t.Errorf("show counters failed: %v", err)
	}
	if !strings.Contains(out.String(), "Devices: 1") {
		t.Errorf("Counters not correct got: %s", out.String())
	}

	out.Reset()
	if err := run(t, sys, "show cdb"); err != nil {
		t.Errorf("show cdb failed: %v", err)
	}
	if sys.Bank.ConfigNumber() != 1 {
		t.Errorf("CDB not populated got: %d expected: %d", sys.Bank.ConfigNumber(), 1)
	}

	out.Reset()
	sys.Appender.Append(time.Now(), 0, "first message")
	sys.Appender.Append(time.Now(), 0, "second message")
	if err := run(t, sys, "show log 1"); err != nil {
		t.Errorf("show log failed: %v", err)
	}
	if strings.Contains(out.String(), "first") || !strings.Contains(out.String(), "second") {
		t.Errorf("Log not correct got: %s", out.String())
	}

	out.Reset()
	if err := run(t, sys, "show node disk0"); err != nil {
		t.Errorf("show node failed: %v", err)
	}
	if err := run(t, sys, "show node nothing"); !errors.Is(err, inventory.ErrNoNode) {
		t.Errorf("show of missing node not correct got: %v", err)
	}
	if err := run(t, sys, "dump all"); err != nil {
		t.Errorf("dump all failed: %v", err)
	}
}

func TestMountReady(t *testing.T) {
	sys, _ := testSystem(t)
	dev, _ := sys.Inv.Device("DISK0")

	if err := run(t, sys, "ready disk0 on"); err == nil {
		t.Errorf("Ready without pack accepted")
	}
	if err := run(t, sys, "ready disk0 maybe"); err == nil {
		t.Errorf("Ready with bad state accepted")
	}
	if err := run(t, sys, "mount disk0 ready"); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	if !dev.IsReady() {
		t.Errorf("Disk not ready after mount")
	}
	if err := run(t, sys, "mount disk0 ring"); err == nil {
		t.Errorf("Ring accepted on disk")
	}
	if err := run(t, sys, "rea disk0 off"); err != nil {
		t.Errorf("Ready off failed: %v", err)
	}
	if dev.IsReady() {
		t.Errorf("Disk ready after ready off")
	}
	if err := run(t, sys, "unload disk0"); err != nil {
		t.Errorf("Unload failed: %v", err)
	}
	if err := run(t, sys, "unload cm0"); err == nil {
		t.Errorf("Unload of channel module accepted")
	}
}

func TestJumpKeys(t *testing.T) {
	sys, out := testSystem(t)
	if err := run(t, sys, "jump 1 on"); err != nil {
		t.Fatalf("jump failed: %v", err)
	}
	sp := sys.Inv.SystemProcessors()[0]
	if sp.JumpKeys() != 0o400000000000 {
		t.Errorf("Jump keys not correct got: %012o expected: %012o", sp.JumpKeys(), uint64(0o400000000000))
	}
	if err := run(t, sys, "jump 37 on"); err == nil {
		t.Errorf("Jump key 37 accepted")
	}
	out.Reset()
	if err := run(t, sys, "jump  "); err != nil {
		t.Errorf("jump display failed: %v", err)
	}
	if !strings.Contains(out.String(), "400000000000") {
		t.Errorf("Jump display not correct got: %s", out.String())
	}
}

func TestInputReply(t *testing.T) {
	sys, _ := testSystem(t)
	if err := run(t, sys, "input  hello there "); err != nil {
		t.Fatalf("input failed: %v", err)
	}
	msg, ok := sys.Console.PollInputMessage(time.Second)
	if !ok || msg.ID != 0 || msg.Text != "hello there" {
		t.Errorf("Input not correct got: %v %+v", ok, msg)
	}

	if err := run(t, sys, "reply 5 yes"); !errors.Is(err, console.ErrNoReadReply) {
		t.Errorf("Reply without message not correct got: %v", err)
	}
	sys.Console.PostReadReplyMessage(5, "CONTINUE?", 3)
	if err := run(t, sys, "reply 5 yes"); err != nil {
		t.Errorf("Reply failed: %v", err)
	}
	msg, ok = sys.Console.PollInputMessage(time.Second)
	if !ok || msg.ID != 5 || msg.Text != "yes" {
		t.Errorf("Reply not correct got: %v %+v", ok, msg)
	}
}

func TestExamineDeposit(t *testing.T) {
	sys, out := testSystem(t)
	if err := run(t, sys, "deposit msp0 0:100 1 2 777777777777"); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if err := run(t, sys, "examine msp0 0:100-102"); err != nil {
		t.Fatalf("examine failed: %v", err)
	}
	expect := "0:000100: 000000000001 000000000002 777777777777\n"
	if out.String() != expect {
		t.Errorf("Examine not correct got: %q expected: %q", out.String(), expect)
	}
	if err := run(t, sys, "examine disk0 0:0"); err == nil {
		t.Errorf("Examine of device accepted")
	}
	if err := run(t, sys, "examine msp0 7:0"); err == nil {
		t.Errorf("Examine of missing segment accepted")
	}
	if err := run(t, sys, "deposit msp0 0:0 9"); err == nil {
		t.Errorf("Deposit of non octal accepted")
	}
}

func TestBuild(t *testing.T) {
	sys, out := testSystem(t)
	if err := run(t, sys, "build"); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	sp := sys.Inv.SystemProcessors()[0]
	addr, ok := sp.ConfigDataBank()
	if !ok || addr.UPI != 1 || addr.Segment == 0 {
		t.Errorf("Config data bank not correct got: %v %s", ok, addr)
	}
	if !strings.Contains(out.String(), "Configuration data bank") {
		t.Errorf("Build output not correct got: %s", out.String())
	}
}

func TestComplete(t *testing.T) {
	sys, _ := testSystem(t)
	match := CompleteCmd("sh", sys)
	if len(match) != 1 || match[0] != "show " {
		t.Errorf("Command completion not correct got: %v", match)
	}
	match = CompleteCmd("show inv", sys)
	if len(match) != 1 || match[0] != "show inventory " {
		t.Errorf("Show completion not correct got: %v", match)
	}
	match = CompleteCmd("dump DI", sys)
	if len(match) != 1 || match[0] != "dump DISK0 " {
		t.Errorf("Node completion not correct got: %v", match)
	}
	match = CompleteCmd("unload ", sys)
	if len(match) != 1 || match[0] != "unload DISK0 " {
		t.Errorf("Device completion not correct got: %v", match)
	}
	match = CompleteCmd("mount DISK0 no", sys)
	if len(match) != 1 || match[0] != "mount DISK0 noring " {
		t.Errorf("Mount completion not correct got: %v", match)
	}
}
