package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Authority is an office complaints can be forwarded to.
type Authority struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email,omitempty"`
}

// DepartmentEntry describes one department and its authorities.
type DepartmentEntry struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Authorities []Authority `yaml:"authorities" json:"authorities"`
}

// Directory is the routing directory loaded from YAML.
type Directory struct {
	Departments []DepartmentEntry `yaml:"departments" json:"departments"`
}

// DefaultDirectory builds a directory from the built-in department list.
func DefaultDirectory() *Directory {
	d := &Directory{}
	for _, id := range Departments {
		d.Departments = append(d.Departments, DepartmentEntry{
			ID:   id,
			Name: strings.ToUpper(id[:1]) + id[1:],
		})
	}
	return d
}

// LoadDirectory reads a YAML directory file. An empty path yields the default directory.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		return DefaultDirectory(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory file: %w", err)
	}
	return ParseDirectory(data)
}

// ParseDirectory decodes and validates YAML directory content.
func ParseDirectory(data []byte) (*Directory, error) {
	var d Directory
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse directory file: %w", err)
	}
	seen := make(map[string]bool, len(d.Departments))
	for i, dep := range d.Departments {
		id := strings.ToLower(strings.TrimSpace(dep.ID))
		if id == "" {
			return nil, fmt.Errorf("department #%d has no id", i+1)
		}
		if seen[id] {
			return nil, fmt.Errorf("department %q listed twice", id)
		}
		seen[id] = true
		d.Departments[i].ID = id
		if d.Departments[i].Name == "" {
			d.Departments[i].Name = dep.ID
		}
	}
	return &d, nil
}

// HasDepartment reports whether id names a known department (case-insensitive).
func (d *Directory) HasDepartment(id string) bool {
	return d.Department(id) != nil
}

// Department looks a department up by id (case-insensitive).
func (d *Directory) Department(id string) *DepartmentEntry {
	id = strings.ToLower(strings.TrimSpace(id))
	for i := range d.Departments {
		if d.Departments[i].ID == id {
			return &d.Departments[i]
		}
	}
	return nil
}

// AuthorityEmail returns the notice address for an authority, if listed.
func (d *Directory) AuthorityEmail(department, authority string) string {
	dep := d.Department(department)
	if dep == nil {
		return ""
	}
	for _, a := range dep.Authorities {
		if strings.EqualFold(a.Name, authority) {
			return a.Email
		}
	}
	return ""
}
