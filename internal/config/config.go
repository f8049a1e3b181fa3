// Package config decodes declarative YAML and TOML files into validated
// Go structs.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrFormat is returned for files whose extension is neither YAML nor TOML.
var ErrFormat = errors.New("config: unsupported format")

// Format is a config file encoding.
type Format uint8

const (
	YAML Format = iota
	TOML
)

func (f Format) String() string {
	if f == TOML {
		return "toml"
	}
	return "yaml"
}

// FormatOf picks the format from the file extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrFormat, name)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() { validate = validator.New(validator.WithRequiredStructEnabled()) })
	return validate
}

// Decode strictly decodes data into v and validates the result. Unknown
// keys are errors.
func Decode(data []byte, format Format, v any) error {
	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("config: decode toml: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	if err := Validator().Struct(v); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// Load reads name from fsys and decodes it by extension.
func Load(fsys fs.FS, name string, v any) error {
	format, err := FormatOf(name)
	if err != nil {
		return err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := Decode(data, format, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
