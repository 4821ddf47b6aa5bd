package ticketformat

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Parse parses a .ticket project from a byte slice
func Parse(data []byte) (*Project, error) {
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	// Templates saved by older editors carry no identity; assign one so the
	// decode cache has a stable key for this process.
	if project.Template.ID == "" {
		project.Template.ID = uuid.New().String()
	}

	if err := Validate(&project); err != nil {
		return nil, err
	}

	return &project, nil
}

// ParseFile parses a .ticket project from disk
func ParseFile(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	return Parse(data)
}

// ParseRecords parses a JSON array of records (field name -> value)
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return records, nil
}

// ParseRecordsFile parses a records JSON file from disk
func ParseRecordsFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	return ParseRecords(data)
}

// ToJSON converts a Project to JSON bytes
func (p *Project) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// SaveToFile saves a Project to a file
func (p *Project) SaveToFile(path string) error {
	data, err := p.ToJSON()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
