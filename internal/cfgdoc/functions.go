// Package cfgdoc parses the configuration documents (config.cpp and
// description.ext) that declare a package's function table.
//
// The parser understands the class/property subset of the config dialect and
// follows #include directives; it does not expand macros.
package cfgdoc

import (
	"fmt"
	"strings"

	"github.com/jward/sqfindex/internal/source"
)

// Default file extension of a declared function when the class sets no ext.
const defaultExt = ".sqf"

// Function is one CfgFunctions entry before path resolution.
type Function struct {
	// Name is the full function name, e.g. "TAG_fnc_spawnGroup".
	Name string
	// Path is the declared path as written (or derived from category defaults).
	Path string
	// Span locates the declaring class name inside Document.
	Span source.Span
	// Document is the file that declares the function. It is the root
	// configuration document unless the declaration came from an #include.
	Document string
}

// Functions maps Key(name) to its declaration.
type Functions map[string]Function

// Key normalises a function name; function names are case-insensitive.
func Key(name string) string {
	return strings.ToLower(name)
}

// Lookup finds a function by name, ignoring case.
func (f Functions) Lookup(name string) (Function, bool) {
	fn, ok := f[Key(name)]
	return fn, ok
}

// Error is a structural problem in a configuration document.
type Error struct {
	Message  string
	Span     source.Span
	Document string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Document, e.Span, e.Message)
}

// ParseFile reads a configuration document and extracts its function table.
//
// The returned error is non-nil only when the document cannot be read at all
// (typically it does not exist). A readable document that fails to parse
// yields a nil table and at least one Error.
func ParseFile(path string) (Functions, []Error, error) {
	tokens, errs, err := lexFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cfgdoc: read %s: %w", path, err)
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	root, errs := parseTokens(tokens)
	if len(errs) > 0 {
		return nil, errs, nil
	}
	return Extract(root), nil, nil
}

// Extract builds the function table from a parsed document:
//
//	class CfgFunctions {
//	    class TAG {
//	        tag = "OTHER";
//	        class Category {
//	            file = "path\to\dir";
//	            class name { file = "path\to\file.sqf"; ext = ".sqf"; };
//	        };
//	    };
//	};
//
// A function's path is its own `file`, else `<category file>\fn_<name><ext>`,
// else `functions\<Category>\fn_<name><ext>`. Later declarations of the same
// name overwrite earlier ones.
func Extract(root *Class) Functions {
	functions := Functions{}
	cfg := root.Child("CfgFunctions")
	if cfg == nil {
		return functions
	}
	for _, tagClass := range cfg.Children {
		tag := tagClass.Name
		if p, ok := tagClass.Prop("tag"); ok && p.Value != "" {
			tag = p.Value
		}
		for _, category := range tagClass.Children {
			categoryFile, hasCategoryFile := category.Prop("file")
			for _, fn := range category.Children {
				ext := defaultExt
				if p, ok := fn.Prop("ext"); ok && p.Value != "" {
					ext = p.Value
				}
				var path string
				switch file, ok := fn.Prop("file"); {
				case ok:
					path = file.Value
				case hasCategoryFile:
					path = strings.TrimRight(categoryFile.Value, `\/`) + `\fn_` + fn.Name + ext
				default:
					path = `functions\` + category.Name + `\fn_` + fn.Name + ext
				}
				name := tag + "_fnc_" + fn.Name
				functions[Key(name)] = Function{
					Name:     name,
					Path:     path,
					Span:     fn.Span,
					Document: fn.Document,
				}
			}
		}
	}
	return functions
}
