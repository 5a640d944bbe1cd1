// Package sqfindex builds project-wide analysis for script packages: addons
// rooted at a config.cpp and missions rooted at a description.ext.
//
// # Pipeline
//
// Indexing runs in three steps:
//
//  1. Discover: walk upward from a file to the nearest directory whose
//     configuration document parses, giving a [Root] and its function table.
//     [Engine.Siblings] adds the neighbouring packages of a workspace.
//
//  2. Resolve: map every declared function path to a file on disk, through
//     the $PBOPREFIX$ aliases of the discovered roots.
//
//  3. Aggregate: analyze every declared file, plus the package's default
//     entry scripts, in a worker pool. Each file sees every other declared
//     function as a stub of type Code, so no file waits on another.
//
// # Usage
//
//	e := sqfindex.New(sqfindex.WithLogger(logger))
//
//	root, err := e.Identify("addons/main/functions/fn_init.sqf")
//	if err != nil { ... }  // nearest config.cpp is broken
//	if root == nil { ... } // loose script, no package
//
//	index, diags, err := e.Index(ctx, root)
//	origin, ok := index.DefinitionAt(path, offset)
//
// Failures below the package level never abort a pass: missing files and
// analyzer errors come back as [Diagnostic] values next to a usable index.
package sqfindex
