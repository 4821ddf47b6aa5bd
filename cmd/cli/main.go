package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ticketpress/sheet-engine/internal/engine"
	"github.com/ticketpress/sheet-engine/internal/fonts"
	"github.com/ticketpress/sheet-engine/pkg/ticketformat"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	var projectPath, recordsPath, outPath, fontDir string
	var dpi float64
	flag.StringVar(&projectPath, "project", "", "Path to .ticket project file")
	flag.StringVar(&recordsPath, "records", "", "Path to records JSON file")
	flag.StringVar(&outPath, "out", "sheet.png", "Output PNG path")
	flag.StringVar(&fontDir, "fonts", "", "Directory of .ttf files to load (family = file name)")
	flag.Float64Var(&dpi, "dpi", 300, "Output resolution")
	flag.Parse()

	if projectPath == "" || recordsPath == "" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" -project and -records are required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(projectPath, recordsPath, outPath, fontDir, dpi); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" "+err.Error())
		os.Exit(1)
	}
}

func run(projectPath, recordsPath, outPath, fontDir string, dpi float64) error {
	project, err := ticketformat.ParseFile(projectPath)
	if err != nil {
		return err
	}

	records, err := ticketformat.ParseRecordsFile(recordsPath)
	if err != nil {
		return err
	}

	registry, err := fonts.NewRegistry()
	if err != nil {
		return err
	}

	if fontDir != "" {
		if err := loadFontDir(registry, fontDir); err != nil {
			log.Printf("Warning: font load failed: %v", err)
		}
	}

	eng := engine.New(registry)

	data, stats, err := eng.RenderSheetPNG(context.Background(), project, records, dpi/engine.MMPerInch)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Println(successStyle.Render("✓") + " Rendered " + outPath)
	fmt.Println(detailStyle.Render(fmt.Sprintf("  %d of %d tickets rendered, %d records, %.0f dpi",
		stats.Rendered, stats.Total, len(records), dpi)))

	return nil
}

// loadFontDir registers every .ttf file in dir under its base name
func loadFontDir(registry *fonts.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".ttf") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("Warning: failed to read font %s: %v", entry.Name(), err)
			continue
		}

		family := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if err := registry.Register(family, data); err != nil {
			log.Printf("Warning: failed to register font %s: %v", family, err)
		}
	}

	return nil
}
