// Package pkg provides the libraries behind the bgf command.
//
// # Overview
//
// BGF is a binary container of graph edit path graphs. A container is read
// in two passes: every graph header first, then every graph payload. The
// pkg directory is organized as:
//
//  1. [bgf] - cursor, header catalog, graph materializer and encoder
//  2. [collection] - columnar collation of records with indexed access
//  3. [cache] - checksummed artifact storage
//  4. [dataset] - decode-or-restore orchestration for one source file
//  5. [config], [errors], [observability], [server] - supporting layers
//
// # Architecture
//
// The data flow through bgf:
//
//	source.bgf
//	     ↓
//	[bgf] ReadCatalog (pass 1) → Materialize (pass 2)
//	     ↓
//	[collection] New → Marshal
//	     ↓
//	[cache] processed/<hash>.bgfc
//
// Once an artifact exists, [dataset] restores the collection from it and
// never opens the source again.
//
// # Quick Start
//
//	ds, err := dataset.New("data/MUTAG/MUTAG.bgf", nil)
//	if err != nil {
//	    return err
//	}
//	coll, err := ds.Materialize(ctx)
//	if err != nil {
//	    return err
//	}
//	rec, err := coll.Get(0)
package pkg
