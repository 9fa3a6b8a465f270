package network

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
	"gopkg.in/yaml.v3"
)

//go:embed networks/*.yaml
var bundledNetworks embed.FS

// Definition is the static description an engine is built from
type Definition struct {
	Identifier string `yaml:"id"`
	Name       string `yaml:"name"`

	Stations  []ctdf.Station      `yaml:"stations"`
	Tracks    []ctdf.TrackSection `yaml:"tracks"`
	Trains    []ctdf.Train        `yaml:"trains"`
	Incidents []ctdf.Incident     `yaml:"incidents"`
}

func (d *Definition) Load() (*Network, error) {
	return Load(d.Stations, d.Tracks)
}

func ParseDefinition(reader io.Reader) (*Definition, error) {
	var definition Definition

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&definition); err != nil {
		return nil, err
	}

	return &definition, nil
}

func LoadDefinitionFile(path string) (*Definition, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	definition, err := ParseDefinition(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("network definition %s: %w", path, err)
	}

	if definition.Identifier == "" {
		definition.Identifier = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return definition, nil
}

// GetRegisteredNetworks loads every definition under a directory keyed by identifier
func GetRegisteredNetworks(directory string) (map[string]*Definition, error) {
	definitions := map[string]*Definition{}

	err := filepath.Walk(directory,
		func(path string, fileInfo os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if fileInfo.IsDir() || filepath.Ext(path) != ".yaml" {
				return nil
			}

			log.Debug().Str("path", path).Msg("Loading network definition")

			definition, err := LoadDefinitionFile(path)
			if err != nil {
				return err
			}

			definitions[definition.Identifier] = definition

			return nil
		})

	return definitions, err
}

// BundledDefinition returns one of the networks compiled into the binary
func BundledDefinition(identifier string) (*Definition, error) {
	contents, err := bundledNetworks.ReadFile(fmt.Sprintf("networks/%s.yaml", identifier))
	if err != nil {
		return nil, fmt.Errorf("no bundled network %q", identifier)
	}

	definition, err := ParseDefinition(bytes.NewReader(contents))
	if err != nil {
		return nil, err
	}
	if definition.Identifier == "" {
		definition.Identifier = identifier
	}

	return definition, nil
}

// ResolveDefinition treats the reference as a file path when it exists, otherwise as a bundled
// network identifier
func ResolveDefinition(reference string) (*Definition, error) {
	if _, err := os.Stat(reference); err == nil {
		return LoadDefinitionFile(reference)
	}

	return BundledDefinition(reference)
}
