/*
 * S2200 - Debug trace configuration tests
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

package debugconfig

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	config "github.com/rcornwell/S2200/config/configparser"
	_ "github.com/rcornwell/S2200/config/models"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/util/debug"
)

const system = "IOP IOP0 upi=3\nBYTECM CM0 iop=IOP0 index=0\nSCRATCHDISK DISK0 chmod=CM0 addr=0\n"

func TestDebugOptions(t *testing.T) {
	inv := inventory.New()
	defer inv.ClearConfiguration()

	text := system + "DEBUG IOP0 upi,detail\nDEBUG CM0 cmd data\nDEBUG disk0 CMD\n"
	err := config.LoadConfig(strings.NewReader(text), inv)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	err = config.LoadConfig(strings.NewReader("DEBUG IOP0 bogus\n"), inv)
	if !errors.Is(err, debug.ErrInvalidOption) {
		t.Errorf("Bad option not rejected got: %v", err)
	}
	err = config.LoadConfig(strings.NewReader("DEBUG IOP9 upi\n"), inv)
	if !errors.Is(err, inventory.ErrNoNode) {
		t.Errorf("Missing node not rejected got: %v", err)
	}
	err = config.LoadConfig(strings.NewReader("DEBUG IOP0 upi=1\n"), inv)
	if err == nil {
		t.Errorf("Option with equals accepted")
	}
	err = config.LoadConfig(strings.NewReader("DEBUG IOP0\n"), inv)
	if err == nil {
		t.Errorf("Debug without options accepted")
	}
}

func TestDebugFile(t *testing.T) {
	inv := inventory.New()
	defer debug.Close()

	name := filepath.Join(t.TempDir(), "trace.log")
	err := config.LoadConfig(strings.NewReader("DEBUGFILE \""+name+"\"\n"), inv)
	if err != nil {
		t.Fatalf("DEBUGFILE failed: %v", err)
	}
	err = config.LoadConfig(strings.NewReader("DEBUGFILE \""+name+"\"\n"), inv)
	if !errors.Is(err, debug.ErrFileOpen) {
		t.Errorf("Second debug file not rejected got: %v", err)
	}
}
