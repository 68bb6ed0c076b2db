// Package ilspy runs the ILSpy command-line decompiler (ilspycmd) and
// implements domain.Decompiler.
//
// Each call decompiles one assembly with the assembly's own directory added
// as a reference path, so sibling assemblies resolve:
//
//	ilspycmd -r <dir(assembly)> -o <outDir> <assembly>
//
// ilspycmd is installed separately with `dotnet tool install -g ilspycmd`.
// A missing binary is reported as ErrToolNotFound and a call exceeding the
// runner's timeout as ErrTimeout.
package ilspy
