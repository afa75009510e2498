package filter

import (
	"fmt"
	"path/filepath"
	"plugin"

	"golang.org/x/sync/singleflight"
)

// Library is a loaded dynamic module. It abstracts the stdlib plugin package
// so the protocol can be exercised against in-memory modules in tests.
type Library interface {
	// Lookup resolves an exported symbol by name.
	Lookup(name string) (any, error)
}

// LibraryOpener loads the shared library at path. Open accepts one via
// WithOpener; the default uses the Go plugin package.
type LibraryOpener func(path string) (Library, error)

// loadGroup single-flights library loads per distinct module path. Dynamic
// loading mutates the process-wide symbol table; concurrent loads of the
// same path would otherwise race on symbol resolution.
var loadGroup singleflight.Group

type goLibrary struct {
	plugin *plugin.Plugin
}

func (l *goLibrary) Lookup(name string) (any, error) {
	sym, err := l.plugin.Lookup(name)
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// OpenLibrary is the default LibraryOpener, backed by the Go plugin package.
// Loaded libraries stay resident until process exit; the Go runtime does not
// support unloading.
func OpenLibrary(path string) (Library, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &goLibrary{plugin: p}, nil
}

// openLibraryOnce serializes opener calls per cleaned path.
func openLibraryOnce(opener LibraryOpener, path string) (Library, error) {
	key := filepath.Clean(path)
	lib, err, _ := loadGroup.Do(key, func() (any, error) {
		return opener(path)
	})
	if err != nil {
		return nil, err
	}
	return lib.(Library), nil
}

// resolveTable resolves SymbolName from lib and normalizes it to a
// *CustomFilter. Modules may export the table either as a value or as a
// pointer variable.
func resolveTable(lib Library) (*CustomFilter, error) {
	sym, err := lib.Lookup(SymbolName)
	if err != nil {
		return nil, err
	}
	switch v := sym.(type) {
	case *CustomFilter:
		return v, nil
	case **CustomFilter:
		if *v == nil {
			return nil, fmt.Errorf("symbol %s is a nil table pointer", SymbolName)
		}
		return *v, nil
	default:
		return nil, fmt.Errorf("symbol %s has type %T, want *filter.CustomFilter", SymbolName, sym)
	}
}
