// Package nexus defines the hierarchical-file capability used by the collect
// engine: files made of named groups (carrying a NeXus class) and typed fields
// (n-dimensional arrays or strings), both with string attributes.
//
// The capability is an interface so the engine never depends on a particular
// binding. A Backend opens or creates files; the engine receives it through its
// constructors instead of a process-wide switch.
//
// # Fields and slabs
//
// A field with rank >= 1 is stored as slabs along its leading axis: slab i holds
// the element block at leading index i, i.e. prod(shape[1:]) elements. This is
// the unit the collect engine appends, and Grow only ever extends the leading
// axis. Scalar fields hold a single slab at index 0.
//
// # Paths
//
// NodePath renders the NeXus-style path of a node, where groups are shown as
// name:NXclass:
//
//	/entry12345:NXentry/instrument:NXinstrument/pilatus300k:NXdetector/data
//
// SplitPath accepts both that form and plain /a/b/c paths.
package nexus
