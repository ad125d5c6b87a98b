/*
 * S2200 - Configuration file parser tests
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

package configparser

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/inventory"
)

var (
	testOptions []Option
	testValue   string
	testType    string
	testInv     *inventory.Manager
	testCount   int
)

func resetTest() {
	testOptions = []Option{}
	testValue = "error"
	testType = ""
	testInv = nil
}

func cleanUpConfig() {
	models = map[string]modelDef{}
	testCount = 0
	resetTest()
}

func record(ty string) CreateFunc {
	return func(inv *inventory.Manager, value string, options []Option) error {
		testInv = inv
		testValue = value
		testType = ty
		testOptions = options
		testCount++
		return nil
	}
}

func registerAll() {
	RegisterOption("testoption", record("option"))
	RegisterSwitch("testswitch", record("switch"))
	RegisterModel("testDevice", TypeModel, record("model"))
	RegisterModel("testOptions", TypeOptions, record("options"))
}

func parse(text string) error {
	line := optionLine{line: text, pos: 0, number: 1}
	return line.parseLine()
}

// Test regisering a model.
func TestRegisterModel(t *testing.T) {
	cleanUpConfig()

	RegisterModel("testdev", TypeModel, record("model"))
	fTest := FirstOption{value: "DISK0", isName: true}
	err := createModel(nil, "test", &fTest, nil)
	if err == nil {
		t.Errorf("Create non existent model succeeded")
	}
	err = createModel(nil, "testdev", &fTest, nil)
	if err != nil {
		t.Errorf("Unable to create model")
	}
	if testValue != "DISK0" {
		t.Errorf("Model name not valid: %s", testValue)
	}
	err = createSwitch(nil, "testdev")
	if err == nil {
		t.Errorf("Create model as switch succeeded")
	}
}

// Test register a switch.
func TestRegisterSwitch(t *testing.T) {
	cleanUpConfig()

	RegisterSwitch("testswitch", record("switch"))
	err := createSwitch(nil, "test")
	if err == nil {
		t.Errorf("Create non existent switch succeeded")
	}
	err = createSwitch(nil, "testswitch")
	if err != nil {
		t.Errorf("Unable to create switch")
	}
	if testValue != "" {
		t.Errorf("Switch value not valid: %s", testValue)
	}
	fTest := FirstOption{value: "test", isName: true}
	err = createModel(nil, "testswitch", &fTest, nil)
	if err == nil {
		t.Errorf("Create switch as model succeeded")
	}
}

// Test register an option.
func TestRegisterOption(t *testing.T) {
	cleanUpConfig()

	fTest := FirstOption{value: "test"}
	RegisterOption("testoption", record("option"))
	err := createOption(nil, "test", &fTest)
	if err == nil {
		t.Errorf("Create non existent option succeeded")
	}
	err = createOption(nil, "testoption", &fTest)
	if err != nil {
		t.Errorf("Unable to create option")
	}
	if testValue != "test" {
		t.Errorf("Option value not valid: %s", testValue)
	}
	err = createModel(nil, "testoption", &fTest, nil)
	if err == nil {
		t.Errorf("Create option as model succeeded")
	}
	if len(Models()) != 1 {
		t.Errorf("Models not correct got: %d expected: %d", len(Models()), 1)
	}
}

// Test parsing of switch types.
func TestParseLineSwitch(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("testSwitch")
	if err != nil {
		t.Errorf("ParseLine failed to parse switch: %v", err)
	}
	if testType != "switch" {
		t.Errorf("ParseLine did not create a switch")
	}

	resetTest()
	err = parse("testSwitch  # Comment")
	if err != nil {
		t.Errorf("ParseLine failed to parse switch and comment")
	}
	if testType != "switch" {
		t.Errorf("ParseLine did not create a switch")
	}

	resetTest()
	err = parse("testSwitch 0 name")
	if err == nil {
		t.Errorf("ParseLine created a switch with argument and options")
	}
	if testType == "switch" {
		t.Errorf("ParseLine created a switch with argument")
	}
}

// Test parsing of optional parameter types.
func TestParseLineOption(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("TESTOPTION")
	if err == nil {
		t.Errorf("ParseLine created an option with no argument")
	}

	resetTest()
	err = parse("testOption debug.log  # Comment")
	if err != nil {
		t.Errorf("ParseLine failed to parse option and comment: %v", err)
	}
	if testType != "option" {
		t.Errorf("ParseLine did not create a option")
	}
	if testValue != "debug.log" {
		t.Errorf("Option value not correct got: %s expected: %s", testValue, "debug.log")
	}

	resetTest()
	err = parse(`testOption "/tmp/trace file.log"`)
	if err != nil {
		t.Errorf("ParseLine failed to parse quoted option: %v", err)
	}
	if testValue != "/tmp/trace file.log" {
		t.Errorf("Option value not correct got: %s expected: %s", testValue, "/tmp/trace file.log")
	}

	resetTest()
	err = parse("testOption one two")
	if err == nil {
		t.Errorf("ParseLine created an option with two arguments")
	}
}

// Test parsing of model parameter types.
func TestParseLineModel(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("TESTdevice")
	if err == nil {
		t.Errorf("ParseLine created model without name")
	}

	resetTest()
	err = parse("testDevice 0100")
	if err == nil {
		t.Errorf("ParseLine created model with numeric name")
	}

	resetTest()
	err = parse("testDevice disk.0")
	if err == nil {
		t.Errorf("ParseLine created model with invalid name")
	}

	resetTest()
	err = parse("testDevice DISK0    # comment")
	if err != nil {
		t.Errorf("ParseLine failed to parse name: %v", err)
	}
	if testType != "model" {
		t.Errorf("ParseLine did not create a model")
	}
	if testValue != "DISK0" {
		t.Errorf("Model name not correct got: %s expected: %s", testValue, "DISK0")
	}
	if len(testOptions) != 0 {
		t.Errorf("ParseLine gave device some extra options")
	}

	resetTest()
	err = parse("testOptions 12 single")
	if err != nil {
		t.Errorf("ParseLine failed to parse options: %v", err)
	}
	if testType != "options" || testValue != "12" || len(testOptions) != 1 {
		t.Errorf("ParseLine options not correct got: %s %s %d", testType, testValue, len(testOptions))
	}
}

// Test parsing of model with flags.
func TestParseLineModelOptions(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("testDevice DISK0   single second  ")
	if err != nil {
		t.Errorf("ParseLine failed to parse name")
	}
	if len(testOptions) != 2 {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), 2)
	}
	if testOptions[0].Name != "single" || testOptions[1].Name != "second" {
		t.Errorf("ParseLine did not give correct options: %s %s", testOptions[0].Name, testOptions[1].Name)
	}
	for _, opt := range testOptions {
		if opt.EqualOpt != "" {
			t.Errorf("ParseLine gave equal value")
		}
		if len(opt.Value) != 0 {
			t.Errorf("ParseLine gave comma parameters")
		}
	}

	resetTest()
	err = parse("testDevice DISK0  = bad")
	if err == nil {
		t.Errorf("ParseLine accepted option starting with =")
	}
}

// Test comma options.
func TestParseLineModelOptionsComma(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("testDevice IOP0   test, second, third # comment")
	if err != nil {
		t.Errorf("ParseLine failed to parse name")
	}
	if len(testOptions) != 1 {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), 1)
	}
	if testOptions[0].Name != "test" {
		t.Errorf("ParseLine did not give correct option: %s", testOptions[0].Name)
	}
	if len(testOptions[0].Value) != 2 {
		t.Fatalf("Wrong number of comma options: %d", len(testOptions[0].Value))
	}
	if *testOptions[0].Value[0] != "second" || *testOptions[0].Value[1] != "third" {
		t.Errorf("Comma values not correct got: %s %s", *testOptions[0].Value[0], *testOptions[0].Value[1])
	}
}

// Test equal option, with and without comma.
func TestParseLineModelOptionsEqual(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse("testDevice DISK0   chmod=CM0 addr=0o17 file=packs/disk-0.img ring")
	if err != nil {
		t.Errorf("ParseLine failed to parse: %v", err)
	}
	expect := []struct {
		name  string
		value string
	}{
		{"chmod", "CM0"},
		{"addr", "0o17"},
		{"file", "packs/disk-0.img"},
		{"ring", ""},
	}
	if len(testOptions) != len(expect) {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), len(expect))
	}
	for i, e := range expect {
		if testOptions[i].Name != e.name {
			t.Errorf("Option %d name not correct got: %s expected: %s", i, testOptions[i].Name, e.name)
		}
		if testOptions[i].EqualOpt != e.value {
			t.Errorf("Option %d value not correct got: '%s' expected: '%s'", i, testOptions[i].EqualOpt, e.value)
		}
	}

	resetTest()
	err = parse("testDevice DISK0   single=second, third # comment")
	if err != nil {
		t.Errorf("ParseLine failed to parse")
	}
	if len(testOptions) != 1 {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), 1)
	}
	if testOptions[0].EqualOpt != "second" {
		t.Errorf("ParseLine did not give = value: '%s'", testOptions[0].EqualOpt)
	}
	if len(testOptions[0].Value) != 1 || *testOptions[0].Value[0] != "third" {
		t.Errorf("Comma value not correct")
	}
}

// Test quoted equal option.
func TestParseLineModelOptionsQuote(t *testing.T) {
	cleanUpConfig()
	registerAll()

	err := parse(`testDevice PRT0   file="Value Second"  `)
	if err != nil {
		t.Errorf("ParseLine failed to parse")
	}
	if len(testOptions) != 1 || testOptions[0].EqualOpt != "Value Second" {
		t.Errorf("ParseLine did not give quoted value")
	}

	resetTest()
	err = parse(`testDevice PRT0   paramx="option,third fourth" ,comma  `)
	if err != nil {
		t.Errorf("ParseLine failed to parse")
	}
	if len(testOptions) != 1 {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), 1)
	}
	if testOptions[0].EqualOpt != "option,third fourth" {
		t.Errorf("ParseLine did not give = value: '%s'", testOptions[0].EqualOpt)
	}
	if len(testOptions[0].Value) != 1 || *testOptions[0].Value[0] != "comma" {
		t.Errorf("Comma value not correct")
	}

	resetTest()
	err = parse(`testDevice PRT0   say="a ""quoted"" word",extra  second=another option`)
	if err != nil {
		t.Errorf("ParseLine failed to parse")
	}
	if len(testOptions) != 3 {
		t.Fatalf("ParseLine options not correct got: %d expected: %d", len(testOptions), 3)
	}
	if testOptions[0].EqualOpt != `a "quoted" word` {
		t.Errorf("ParseLine did not give = value: '%s'", testOptions[0].EqualOpt)
	}
	if len(testOptions[0].Value) != 1 || *testOptions[0].Value[0] != "extra" {
		t.Errorf("Comma value not correct")
	}
	if testOptions[1].EqualOpt != "another" || testOptions[2].Name != "option" {
		t.Errorf("Trailing options not correct got: %s %s", testOptions[1].EqualOpt, testOptions[2].Name)
	}

	resetTest()
	err = parse(`testDevice PRT0   file="unterminated`)
	if err == nil {
		t.Errorf("ParseLine accepted unterminated quote")
	}
}

// Test loading several lines.
func TestLoadConfig(t *testing.T) {
	cleanUpConfig()
	registerAll()

	inv := inventory.New()
	text := "# test configuration\n\ntestDevice DISK0 addr=1\n  testSwitch\ntestOption trace.log\n"
	err := LoadConfig(strings.NewReader(text), inv)
	if err != nil {
		t.Errorf("LoadConfig failed: %v", err)
	}
	if testCount != 3 {
		t.Errorf("Lines processed not correct got: %d expected: %d", testCount, 3)
	}
	if testInv != inv {
		t.Errorf("Inventory not passed to create")
	}

	text = "testDevice DISK0\nbogus DISK1\n"
	err = LoadConfig(strings.NewReader(text), inv)
	if err == nil {
		t.Fatalf("LoadConfig accepted unknown model")
	}
	if !strings.Contains(err.Error(), "line: 2") {
		t.Errorf("Error does not report line got: %v", err)
	}

	failed := errors.New("failed")
	RegisterModel("failing", TypeModel, func(_ *inventory.Manager, _ string, _ []Option) error {
		return failed
	})
	err = LoadConfig(strings.NewReader("testSwitch\nfailing X\n"), inv)
	if !errors.Is(err, failed) {
		t.Errorf("Create error not returned got: %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "line: 2") {
		t.Errorf("Error does not report line got: %v", err)
	}

	err = LoadConfigFile("/nonexistent/config.cfg", inv)
	if err == nil {
		t.Errorf("LoadConfigFile opened missing file")
	}
}
