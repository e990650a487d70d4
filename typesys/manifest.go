package typesys

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teranos/typetrace/errors"
)

// Manifest describes modules the traced program defines, so that stored
// traces naming them can be decoded outside that program.
//
//	modules:
//	  - name: pandera_example
//	    types:
//	      - name: Box
//	        generic: true
//	    functions:
//	      - qualname: takes_df
//	        params: [df]
//	    values: [DEBUG]
type Manifest struct {
	Modules []ManifestModule `yaml:"modules"`
}

// ManifestModule is one module entry.
type ManifestModule struct {
	Name      string             `yaml:"name"`
	Types     []ManifestType     `yaml:"types"`
	Functions []ManifestFunction `yaml:"functions"`
	Values    []string           `yaml:"values"`
}

// ManifestType declares a nominal type.
type ManifestType struct {
	Name    string `yaml:"name"`
	Alias   string `yaml:"alias"`
	Generic bool   `yaml:"generic"`
}

// ManifestFunction declares a callable and its parameter order.
type ManifestFunction struct {
	Qualname string   `yaml:"qualname"`
	Params   []string `yaml:"params"`
}

// LoadManifest parses a YAML manifest and defines its contents in r.
func LoadManifest(reader io.Reader, r *Registry) error {
	var m Manifest
	dec := yaml.NewDecoder(reader)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(errors.ErrInvalidRequest, "parse universe manifest: %v", err)
	}
	return m.Apply(r)
}

// LoadManifestFile loads the manifest at path into r.
func LoadManifestFile(path string, r *Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open universe manifest %s", path)
	}
	defer f.Close()

	if err := LoadManifest(f, r); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// Apply defines every manifest entry in r.
func (m *Manifest) Apply(r *Registry) error {
	for _, mod := range m.Modules {
		for _, mt := range mod.Types {
			t := &Type{Module: mod.Name, Name: mt.Name, Alias: mt.Alias, Generic: mt.Generic}
			if err := r.Define(mod.Name, t.DisplayName(), t); err != nil {
				return errors.Wrapf(err, "module %s", mod.Name)
			}
		}
		for _, mf := range mod.Functions {
			fn := &Func{Module: mod.Name, Qualname: mf.Qualname, Params: mf.Params}
			if err := r.DefineFunc(fn); err != nil {
				return errors.Wrapf(err, "module %s", mod.Name)
			}
		}
		for _, name := range mod.Values {
			if err := r.Define(mod.Name, name, &Value{Module: mod.Name, Name: name}); err != nil {
				return errors.Wrapf(err, "module %s", mod.Name)
			}
		}
	}
	return nil
}
