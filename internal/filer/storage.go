package filer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rox-desktop/rox-filer-sub001/internal/choices"
)

// Backdrop styles accepted by SetBackdrop.
var backdropStyles = []string{"Tile", "Scale", "Stretch", "Centre", "Fit"}

// Icon is one pinboard entry.
type Icon struct {
	Path  string `yaml:"path"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Label string `yaml:"label,omitempty"`
}

// Backdrop is the pinboard background and the program that set it.
type Backdrop struct {
	App   string `yaml:"app,omitempty"`
	Path  string `yaml:"path,omitempty"`
	Style string `yaml:"style,omitempty"`
}

// PinboardState is the saved form of a pinboard.
type PinboardState struct {
	Name     string   `yaml:"name"`
	Backdrop Backdrop `yaml:"backdrop,omitempty"`
	Icons    []Icon   `yaml:"icons,omitempty"`
}

// Side is the screen edge a panel is attached to.
type Side string

const (
	Top    Side = "Top"
	Bottom Side = "Bottom"
	Left   Side = "Left"
	Right  Side = "Right"
)

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch side := Side(s); side {
	case Top, Bottom, Left, Right:
		return side, nil
	}
	return "", fmt.Errorf("invalid panel side %q (want Top, Bottom, Left or Right)", s)
}

// PanelItem is one panel entry. End items sit in the right or bottom
// group of the panel.
type PanelItem struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label,omitempty"`
	End   bool   `yaml:"end,omitempty"`
}

// PanelState is the saved form of a panel.
type PanelState struct {
	Name  string      `yaml:"name"`
	Side  Side        `yaml:"side"`
	Items []PanelItem `yaml:"items,omitempty"`
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.Contains(name, string(os.PathSeparator)) || name != filepath.Base(name) {
		return fmt.Errorf("invalid name %q", name)
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

func statePath(kind, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return choices.Path(kind, name+".yaml")
}

func loadState(kind, name string, out any) (bool, error) {
	path, err := statePath(kind, name)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

func saveState(kind, name string, in any) error {
	if err := validateName(name); err != nil {
		return err
	}
	path, err := choices.SavePath(kind, name+".yaml")
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// LoadPinboard reads a saved pinboard; a missing file gives an empty one.
func LoadPinboard(name string) (*PinboardState, error) {
	st := &PinboardState{Name: name}
	if _, err := loadState("pinboards", name, st); err != nil {
		return nil, err
	}
	st.Name = name
	return st, nil
}

// Save writes the pinboard under the choices directory.
func (p *PinboardState) Save() error {
	return saveState("pinboards", p.Name, p)
}

// LoadPanel reads a saved panel; a missing file gives an empty one on side.
func LoadPanel(name string, side Side) (*PanelState, error) {
	st := &PanelState{Name: name, Side: side}
	if _, err := loadState("panels", name, st); err != nil {
		return nil, err
	}
	st.Name = name
	st.Side = side
	return st, nil
}

// Save writes the panel under the choices directory.
func (p *PanelState) Save() error {
	return saveState("panels", p.Name, p)
}

// Add appends an item to the start or end group.
func (p *PanelState) Add(item PanelItem) {
	p.Items = append(p.Items, item)
}
