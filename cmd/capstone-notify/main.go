package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ltran/capstone-notify/internal/app"
	"github.com/ltran/capstone-notify/internal/bus"
	"github.com/ltran/capstone-notify/internal/model"
	"github.com/ltran/capstone-notify/internal/readstate"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the configuration file")
	dbPath := flag.String("db", defaultDBPath(), "path to the read-marks database")
	flag.Parse()

	// Background collector failures are logged, not shown; keep them
	// out of the terminal the TUI owns.
	if os.Getenv("CAPSTONE_NOTIFY_DEBUG") != "" {
		f, err := tea.LogToFile("capstone-notify.log", "debug")
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	changeBus := bus.New()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating data directory: %v\n", err)
		os.Exit(1)
	}

	store, err := readstate.Open(*dbPath, changeBus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening read-marks database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	program := tea.NewProgram(
		app.New(cfg, *configPath, store, changeBus),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// defaultDBPath places the read-marks database alongside the
// configuration under ~/.config/capstone-notify.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "read-marks.db")
	}
	return filepath.Join(home, ".config", "capstone-notify", "read-marks.db")
}
