// Command mapview opens a map in the terminal.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"mapsmith/internal/logging"
	"mapsmith/internal/tui"
	"mapsmith/persistence"
	"mapsmith/services"
)

func main() {
	configPath := flag.String("config", "", "config file (.json, .yaml or .yml)")
	input := flag.String("input", "", "map text file to open")
	storeFile := flag.String("db", "mapsmith.json", "JSON store for saved maps and the default config")
	name := flag.String("name", "untitled", "name used when saving the map")
	logFile := flag.String("log", "", "log file; logging is off when empty")
	flag.Parse()

	logger := zap.NewNop()
	if *logFile != "" {
		l, err := logging.New("debug", "json", *logFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mapview:", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	if err := run(*configPath, *input, *storeFile, *name, logger); err != nil {
		fmt.Fprintln(os.Stderr, "mapview:", err)
		os.Exit(1)
	}
}

func run(configPath, input, storeFile, name string, logger *zap.Logger) error {
	db, err := persistence.NewJSONStore(storeFile)
	if err != nil {
		return err
	}
	defer db.Close()

	editor := services.NewEditorService(db, logger)
	if configPath != "" {
		cfg, err := persistence.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		if err := editor.SetConfig(cfg); err != nil {
			return err
		}
	} else if err := editor.LoadDefault(); err != nil {
		logger.Debug("no stored default config", zap.Error(err))
	}

	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		err = editor.LoadMapText(f)
		f.Close()
		if err != nil {
			return err
		}
	} else if _, err := editor.Generate(); err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	viewer := tui.NewViewer(screen, editor, logger)
	viewer.SetSaveName(name)
	viewer.Run()
	return nil
}
