// Package exdf decrypts MUT-III exdf trees into XML trees.
//
// A run has two phases. First every target (.exdf by default) is decrypted,
// decoded as text, optionally re-indented and written next to its mirrored
// position with an .xml extension; failures are recorded per file and never
// stop the run. Then every other file is mirrored verbatim, keeping mode and
// modification time. A decrypted output always wins over a plain file that
// would land on the same path.
//
// Every run writes a manifest of input and output digests into the output
// tree. In incremental mode the previous manifest is consulted and unchanged
// inputs are skipped.
package exdf
