// Package decompile runs a .NET decompiler over every assembly in a tree.
//
// Each assembly is decompiled into <output>/<relative dir>/<stem>/. Assemblies
// that decompile successfully are not mirrored; failed ones are copied as-is
// together with every other file, so the output tree is complete either way.
// A missing decompiler aborts the whole run.
package decompile
