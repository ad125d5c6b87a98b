/*
 * S2200 - Main process.
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

package main

import (
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"
	command "github.com/rcornwell/S2200/command/command"
	"github.com/rcornwell/S2200/command/gui"
	reader "github.com/rcornwell/S2200/command/reader"
	config "github.com/rcornwell/S2200/config/configparser"
	"github.com/rcornwell/S2200/emu/cdb"
	"github.com/rcornwell/S2200/emu/console"
	"github.com/rcornwell/S2200/emu/inventory"
	"github.com/rcornwell/S2200/util/debug"
	logger "github.com/rcornwell/S2200/util/logger"

	_ "github.com/rcornwell/S2200/config/debugconfig"
	_ "github.com/rcornwell/S2200/config/models"
)

// Log entries kept for the system console.
const logEntries = 1000

func main() {
	optConfig := getopt.StringLong("config", 'c', "S2200.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log debug to console")
	optGui := getopt.BoolLong("gui", 'g', "Full screen console")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var logOut io.Writer
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("Unable to create log file: " + err.Error())
			os.Exit(1)
		}
		defer file.Close()
		logOut = file
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	handler := logger.NewHandler(logOut, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug)
	appender := logger.NewAppender(logEntries)
	handler.SetAppender(appender)
	Logger := slog.New(handler)
	slog.SetDefault(Logger)

	Logger.Info("S2200 Started")

	_, err := os.Stat(*optConfig)
	if os.IsNotExist(err) {
		Logger.Error("Configuration file " + *optConfig + " can't be found")
		os.Exit(1)
	}

	inv := inventory.New()
	err = config.LoadConfigFile(*optConfig, inv)
	if err != nil {
		Logger.Error(err.Error())
		inv.ClearConfiguration()
		os.Exit(1)
	}

	sys := &command.System{
		Inv:      inv,
		Console:  console.NewBuffered(),
		Bank:     cdb.New(),
		Appender: appender,
		Out:      os.Stdout,
	}

	var screen *gui.Gui
	var cons console.Console = sys.Console
	if *optGui {
		screen = gui.New(sys)
		cons = screen
	}

	// Hook the system processors to the console, then have the first one
	// build the configuration data bank in the first main storage processor.
	sps := inv.SystemProcessors()
	for _, sp := range sps {
		sp.SetAppender(appender)
		sp.SetConsole(cons)
	}
	msps := inv.MainStorageProcessors()
	switch {
	case len(sps) == 0:
		Logger.Warn("No system processor configured")
	case len(msps) == 0:
		Logger.Warn("No main storage processor for configuration data bank")
	default:
		addr, err := sps[0].BuildConfigDataBank(cdb.NewBuilder(sys.Bank, inv), msps[0].UPI())
		if err != nil {
			Logger.Error(err.Error())
		} else {
			Logger.Info("Configuration data bank at " + addr.String())
		}
	}

	if screen != nil {
		handler.SetStderr(nil)
		err := screen.Run()
		handler.SetStderr(os.Stderr)
		if err != nil {
			Logger.Error(err.Error())
		}
	} else {
		reader.ConsoleReader(sys)
	}

	inv.ClearConfiguration()
	debug.Close()
	Logger.Info("S2200 stopped.")
}
