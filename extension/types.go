package extension

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/viant/x"
)

// Import aliases a package path for type lookups by short name.
type Import struct {
	Package string
	PkgPath string
}

// Imports is a lookup table of package aliases.
type Imports []*Import

// PkgPath resolves a short package name to its full path.
func (i Imports) PkgPath(pkg string) string {
	for _, item := range i {
		if item.Package == pkg {
			return item.PkgPath
		}
	}
	return ""
}

// HasPkgPath reports whether path is already aliased.
func (i Imports) HasPkgPath(path string) bool {
	for _, item := range i {
		if strings.HasPrefix(item.PkgPath, path) {
			return true
		}
	}
	return false
}

// Types registers the Go types action inputs and outputs decode into.
type Types struct {
	x.Registry
	imports Imports
}

// Register adds a data type to the registry
func (t *Types) Register(dataType *x.Type) {
	if dataType.PkgPath != "" {
		if idx := strings.LastIndex(dataType.PkgPath, "/"); idx > 0 {
			pkgPath := dataType.PkgPath[:idx]
			if !t.imports.HasPkgPath(pkgPath) {
				t.imports = append(t.imports, &Import{Package: dataType.PkgPath[idx+1:], PkgPath: dataType.PkgPath})
			}
		}
	}
	t.Registry.Register(dataType)
}

// Lookup returns a data type from the registry; dataType may carry a slice or
// map modifier prefix and a short package alias.
func (t *Types) Lookup(dataType string) *x.Type {
	typeModifier := ""
	if idx := strings.LastIndex(dataType, "]"); idx != -1 {
		typeModifier = dataType[:idx+1]
		dataType = dataType[idx+1:]
	}
	if idx := strings.LastIndex(dataType, "."); idx != -1 {
		pkg, typeName := dataType[:idx], dataType[idx+1:]
		if pkgPath := t.imports.PkgPath(pkg); pkgPath != "" {
			pkg = pkgPath
		}
		dataType = fmt.Sprintf("%s.%s", pkg, typeName)
	}
	ret := t.Registry.Lookup(dataType)
	if ret == nil {
		return nil
	}
	rType := ret.Type
	switch strings.TrimSpace(typeModifier) {
	case "[]":
		rType = reflect.SliceOf(rType)
	case "map[string]":
		rType = reflect.MapOf(reflect.TypeOf(""), rType)
	}
	if rType != ret.Type {
		return x.NewType(rType)
	}
	return ret
}

// Imports returns the registered package aliases.
func (t *Types) Imports() Imports {
	return t.imports
}

// NewTypes creates a new types registry
func NewTypes(options ...x.RegistryOption) *Types {
	return &Types{Registry: *x.NewRegistry(options...)}
}
