package types

import (
	"io/fs"
	"time"
)

// Entry is a regular file found under an input root.
type Entry struct {
	Rel     string      `json:"rel"` // slash-separated, relative to the input root
	Size    int64       `json:"size"`
	Mode    fs.FileMode `json:"mode"`
	ModTime time.Time   `json:"mod_time"`
}

// Plan is the result of scanning an input tree.
//
// Targets are transformed (decrypted or decompiled); Others are mirrored verbatim.
type Plan struct {
	Input   string
	Output  string
	Targets []Entry
	Others  []Entry
}
