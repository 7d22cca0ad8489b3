package song

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Encode writes the project as YAML. Encoding is deterministic: equal projects produce
// byte-identical output.
func Encode(w io.Writer, p *Project) error {
	p = p.Clone()
	positiveZeros(reflect.ValueOf(p).Elem())
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return enc.Close()
}

// positiveZeros replaces -0 with 0 in every float reachable from v. YAML keeps the sign
// of -0 on encode but not on decode.
func positiveZeros(v reflect.Value) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		if v.Float() == 0 {
			v.SetFloat(0)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if v.Type().Field(i).IsExported() {
				positiveZeros(v.Field(i))
			}
		}
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			positiveZeros(v.Index(i))
		}
	}
}

// Decode reads a YAML project and validates it.
func Decode(r io.Reader) (*Project, error) {
	p := New()
	p.Channels = [NumChannels]Channel{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Marshal returns the YAML encoding of p.
func Marshal(p *Project) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes and validates a YAML project.
func Unmarshal(data []byte) (*Project, error) {
	return Decode(bytes.NewReader(data))
}

// Save writes the project to a file.
func Save(path string, p *Project) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	return nil
}

// Load reads a project file.
func Load(path string) (*Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}
