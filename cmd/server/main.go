package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ticketpress/sheet-engine/internal/api"
	"github.com/ticketpress/sheet-engine/internal/engine"
	"github.com/ticketpress/sheet-engine/internal/fonts"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	var port int
	var fontDir string
	var cacheCap int
	flag.IntVar(&port, "port", 12412, "Port to listen on")
	flag.IntVar(&port, "p", 12412, "Port to listen on (short)")
	flag.StringVar(&fontDir, "fonts", "", "Directory of .ttf files to preload (family = file name)")
	flag.IntVar(&cacheCap, "cache", 0, "Ticket cache capacity (0 = unbounded)")
	flag.Parse()

	registry, err := fonts.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to create font registry: %v", err)
	}

	if fontDir != "" {
		if err := loadFontDir(registry, fontDir); err != nil {
			log.Printf("Warning: font preload failed: %v", err)
		}
	}

	eng := engine.New(registry)
	if cacheCap > 0 {
		eng.SetTicketCapacity(cacheCap)
	}

	server := api.NewServer(eng, registry)

	log.Printf("sheet-engine %s listening on :%d", Version, port)
	if err := server.Run(port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
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
			continue
		}
		log.Printf("Registered font family %q", family)
	}

	return nil
}
