package decl

import (
	"io"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/ffi-runtime/ctype"
	"github.com/wippyai/ffi-runtime/errors"
)

// LoadWIT imports the named types of a WIT package into reg. A path ending
// in .json is read as the JSON form printed by `wasm-tools component wit -j`;
// any other path is compiled by the wasm-tools build bundled with the wit
// module.
func LoadWIT(reg *ctype.Registry, path string) (ids []ctype.ID, skipped []string, err error) {
	var res *wit.Resolve
	if strings.HasSuffix(path, ".json") {
		res, err = wit.LoadJSON(path)
	} else {
		res, err = wit.LoadWIT(path)
	}
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "load WIT "+path)
	}
	return ImportResolve(reg, res)
}

// DecodeWITJSON imports the named types of a WIT JSON document.
func DecodeWITJSON(reg *ctype.Registry, r io.Reader) ([]ctype.ID, []string, error) {
	res, err := wit.DecodeJSON(r)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "decode WIT JSON")
	}
	return ImportResolve(reg, res)
}

// ImportResolve imports every named type definition of res in declaration
// order. Definitions with no C layout, such as variants and resources, are
// skipped and reported by name.
func ImportResolve(reg *ctype.Registry, res *wit.Resolve) (ids []ctype.ID, skipped []string, err error) {
	imp := ctype.NewWITImporter(reg)
	for _, td := range res.TypeDefs {
		if td.Name == nil {
			continue
		}
		id, err := imp.Import(td)
		if errors.Is(err, errors.ErrInvalidInput) {
			skipped = append(skipped, *td.Name)
			continue
		}
		if err != nil {
			return ids, skipped, withPath(err, *td.Name)
		}
		ids = append(ids, id)
	}
	return ids, skipped, nil
}
