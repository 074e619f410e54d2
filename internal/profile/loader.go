package profile

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed variant.cue
var variantSchema string

// LoadVariantFile reads a form variant from a .yaml/.yml or .cue file.
//
// A CUE file declares a top-level `variant` struct which is unified against
// the embedded #Variant definition before decoding. A YAML file is decoded
// directly. Either way the result is compiled before it is returned.
func LoadVariantFile(path string) (*Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read variant file: %w", err)
	}

	var v Variant
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		// Strict decoding catches typos like "defualt:" vs "default:"
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".cue":
		if err := decodeCUE(path, data, &v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported variant file extension %q", ext)
	}

	if err := v.Compile(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &v, nil
}

func decodeCUE(path string, data []byte, v *Variant) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(variantSchema, cue.Filename("variant.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile variant schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	variantVal := file.LookupPath(cue.ParsePath("variant"))
	if !variantVal.Exists() {
		return fmt.Errorf("%s: no top-level variant", path)
	}

	unified := schema.LookupPath(cue.ParsePath("#Variant")).Unify(variantVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := unified.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
