/*
 * S2200 - Configuration file parser
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
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rcornwell/S2200/emu/inventory"
)

// List of options to pass to create routine.
type Option struct {
	Name     string    // Name of option.
	EqualOpt string    // Value of string after =.
	Value    []*string // Value of option.
}

// Option after model.
type FirstOption struct {
	value  string // String value of option.
	isName bool   // Value is a valid node name.
}

// Current option line being parsed.
type optionLine struct {
	line   string             // Current option line.
	pos    int                // Current position in line.
	number int                // Line number in file.
	inv    *inventory.Manager // Inventory being configured.
}

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <model> <whitespace> <name> <whitespace> <options> |
 *            <option> <whitespace> <quoteopt> |
 *            <switch>
 * <name> ::= <letter> *(<letter> | <number>)
 * <options> ::= *(<option> *(<whitespace>))
 * <option> ::= *<value> (<whitespace> | <eol>
 * <value> ::= <opt> *(',' *(<whitespace>) <string>
 * <opt> := <valueopt> | <string>
 * <optvalue> ::= <string>' =' <quoteopt>
 * <quoteopt> ::= <path> | '"' *(<letter> | <whitespace>) '"'
 * <path> ::= *(<letter> | <number> | '.' | '/' | '-' | '_' | ':')
 * <string> ::= *(<letter> | <number>)
 *
 * Example:
 *   SP     SP0 upi=0
 *   MSP    MSP0 upi=1 size=262144
 *   IOP    IOP0 upi=3
 *   IP     IP0 upi=5 broadcast
 *   BYTECM CM0 iop=IOP0 index=0
 *   FSDISK DISK0 chmod=CM0 addr=0 file=pack0.dsk
 *   DEBUG  IOP0 upi,detail
 */

const (
	TypeModel   = 1 + iota // Node, requires a name.
	TypeOption             // Accepts a option parameter.
	TypeOptions            // Accepts a list of options.
	TypeSwitch             // Option only used to set a flag.
)

// Create routine, given the inventory, the value after the model and
// the remaining options.
type CreateFunc func(inv *inventory.Manager, value string, options []Option) error

// Model creation list.
type modelDef struct {
	create CreateFunc
	ty     int
}

var models = map[string]modelDef{}

// Return type of model or 0 if no model.
func getModel(mod string) int {
	model, ok := models[mod]
	if !ok {
		return 0
	}
	return model.ty
}

// Register should be called from init functions.
func RegisterModel(mod string, ty int, fn CreateFunc) {
	mod = strings.ToUpper(mod)
	slog.Debug("Registering model: " + mod)
	models[mod] = modelDef{create: fn, ty: ty}
}

// Register should be called from init functions.
func RegisterSwitch(mod string, fn CreateFunc) {
	mod = strings.ToUpper(mod)
	slog.Debug("Registering switch: " + mod)
	models[mod] = modelDef{create: fn, ty: TypeSwitch}
}

// Register should be called from init functions.
func RegisterOption(mod string, fn CreateFunc) {
	mod = strings.ToUpper(mod)
	slog.Debug("Registering simple option: " + mod)
	models[mod] = modelDef{create: fn, ty: TypeOption}
}

// Return list of registered models, used for help text.
func Models() []string {
	list := make([]string, 0, len(models))
	for name := range models {
		list = append(list, name)
	}
	return list
}

// Look up a model of the given type.
func lookup(mod string, ty int, what string) (modelDef, error) {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return model, errors.Errorf("unknown %s: %s", what, mod)
	}
	if model.ty != ty {
		return model, errors.Errorf("not a %s type: %s", what, mod)
	}
	return model, nil
}

// Create a node of type model.
func createModel(inv *inventory.Manager, mod string, first *FirstOption, options []Option) error {
	model, err := lookup(mod, TypeModel, "model")
	if err != nil {
		return err
	}
	return model.create(inv, first.value, options)
}

// Create a option with one parameter.
func createOption(inv *inventory.Manager, mod string, first *FirstOption) error {
	model, err := lookup(mod, TypeOption, "option")
	if err != nil {
		return err
	}
	return model.create(inv, first.value, []Option{})
}

// Create a option with options.
func createOptions(inv *inventory.Manager, mod string, first *FirstOption, options []Option) error {
	model, err := lookup(mod, TypeOptions, "options")
	if err != nil {
		return err
	}
	return model.create(inv, first.value, options)
}

// Create switch option.
func createSwitch(inv *inventory.Manager, mod string) error {
	model, err := lookup(mod, TypeSwitch, "switch")
	if err != nil {
		return err
	}
	return model.create(inv, "", nil)
}

// Load in a configuration file.
func LoadConfigFile(name string, inv *inventory.Manager) error {
	file, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "configuration file")
	}
	defer file.Close()
	return LoadConfig(file, inv)
}

// Process configuration lines from reader.
func LoadConfig(input io.Reader, inv *inventory.Manager) error {
	reader := bufio.NewReader(input)
	number := 0
	for {
		var err error

		line := optionLine{inv: inv}
		line.line, err = reader.ReadString('\n')
		number++
		line.number = number
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		err = line.parseLine()
		if err != nil {
			return err
		}
	}
	return nil
}

// Parse one line from file.
func (line *optionLine) parseLine() error {
	model := line.parseModel()
	if model == "" {
		return nil
	}
	switch getModel(model) {
	case TypeModel:
		// Get node name.
		first := line.parseFirst()
		if first == nil || !first.isName {
			return errors.Errorf("model %s requires a name, line: %d", model, line.number)
		}
		// Get any remaining options.
		options, err := line.parseOptions()
		if err != nil {
			return err
		}

		return errors.Wrapf(createModel(line.inv, model, first, options), "line: %d", line.number)

	case TypeOption:
		first := line.parseFirst()
		line.skipSpace()
		if !line.isEOL() || first == nil {
			return errors.Errorf("option: %s not followed by value, line: %d", model, line.number)
		}
		return errors.Wrapf(createOption(line.inv, model, first), "line: %d", line.number)

	case TypeOptions:
		first := line.parseFirst()
		if first == nil {
			return errors.Errorf("option: %s not followed by value, line: %d", model, line.number)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return errors.Wrapf(createOptions(line.inv, model, first, options), "line: %d", line.number)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return errors.Errorf("switch option: %s followed by options, line: %d", model, line.number)
		}
		return errors.Wrapf(createSwitch(line.inv, model), "line: %d", line.number)
	}
	return errors.Errorf("no type: %s registered, line: %d", model, line.number)
}

// Skip forward over line until none whitespace character found.
func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

// Check if at end of line.
func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

// Characters allowed in a name.
func isNameChar(by byte) bool {
	return unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by))
}

// Characters allowed in an unquoted value, enough for a file path.
func isPathChar(by byte) bool {
	if isNameChar(by) {
		return true
	}
	return strings.IndexByte("./-_:~", by) >= 0
}

// Return next character of value in line. 0 if EOL or terminator.
func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.pos >= len(line.line) {
		return 0
	}
	by := line.line[line.pos]
	if inQuote {
		return by
	}
	if by == '#' || !isPathChar(by) {
		return 0
	}
	return by
}

// Peek at next character.
func (line *optionLine) getPeek() byte {
	if (line.pos + 1) >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// Grab a run of name characters.
func (line *optionLine) scanName() string {
	start := line.pos
	for !line.isEOL() && isNameChar(line.line[line.pos]) {
		line.pos++
	}
	return line.line[start:line.pos]
}

// Parse model name.
func (line *optionLine) parseModel() string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	return strings.ToUpper(line.scanName())
}

// Parse first option parameter. Either a name or a path, quoted or not.
func (line *optionLine) parseFirst() *FirstOption {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	by := line.line[line.pos]
	if by == '"' {
		// parseQuoteString expects to sit before the value.
		line.pos--
		value, ok := line.parseQuoteString()
		if !ok {
			return nil
		}
		return &FirstOption{value: value}
	}

	start := line.pos
	for !line.isEOL() && isPathChar(line.line[line.pos]) {
		line.pos++
	}
	value := line.line[start:line.pos]
	if value == "" {
		return nil
	}

	option := FirstOption{value: value, isName: unicode.IsLetter(rune(value[0]))}
	for i := range len(value) {
		if !isNameChar(value[i]) {
			option.isName = false
		}
	}
	return &option
}

// Parse string that is "string" or just string. Called with position
// on the character before the value.
func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	var value strings.Builder

	// If quote, set we are in quoted string
	if line.getPeek() == '"' {
		inQuote = true
		line.pos++
	}

	for {
		by := line.getNext(inQuote)
		// If processing a quoted string "" gets replaced by signal quote
		if by == '"' && inQuote {
			if line.getPeek() != '"' {
				// Hit end of string.
				line.pos++
				return value.String(), true
			}
			line.pos++
		}

		// Terminator of a non quoted string.
		if !inQuote && by == 0 {
			return value.String(), true
		}

		// Ran off end of line inside quotes.
		if inQuote && line.pos >= len(line.line) {
			return value.String(), false
		}

		value.WriteByte(by)
	}
}

// Parse option name.
func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}

	// First character must be alphabetic.
	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) {
		return "", errors.Errorf("invalid option encountered line: %d [%d]", line.number, line.pos)
	}
	return line.scanName(), nil
}

// Parse options for a line.
func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()

	// Grab option name
	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}

	if line.isEOL() {
		return &option, nil
	}

	// Check if equals option.
	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, errors.Errorf("invalid quoted string line: %d [%d]", line.number, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()

	// Grab all , options
	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++ // Skip comma
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, &v)
		}
		line.skipSpace()
	}

	return &option, nil
}

// Collect all options for line.
func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
