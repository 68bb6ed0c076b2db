package types

import "time"

// Status is the outcome of processing a single file.
type Status string

const (
	StatusDecrypted  Status = "decrypted"
	StatusDecompiled Status = "decompiled"
	StatusCopied     Status = "copied"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// RunKind names the tree operation a Report describes.
type RunKind string

const (
	RunDecrypt   RunKind = "decrypt"
	RunDecompile RunKind = "decompile"
)

// FileResult records what happened to one input file.
type FileResult struct {
	Path   string `json:"path"`             // relative input path
	Output string `json:"output,omitempty"` // relative output path
	Status Status `json:"status"`
	Err    string `json:"error,omitempty"`
	Digest string `json:"digest,omitempty"` // BLAKE2b-256 of the written output
	Bytes  int64  `json:"bytes,omitempty"`

	// Mirror is set for results produced by the copy phase.
	Mirror bool `json:"mirror,omitempty"`
}

// Failed reports whether the file could not be processed.
func (r FileResult) Failed() bool { return r.Status == StatusFailed }

// Report summarises a tree run.
type Report struct {
	RunID    string       `json:"run_id"`
	Kind     RunKind      `json:"kind"`
	Input    string       `json:"input"`
	Output   string       `json:"output"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Results  []FileResult `json:"results"`

	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Copied    int `json:"copied"`
	Skipped   int `json:"skipped"`
}

// Tally recomputes the counters from Results.
func (r *Report) Tally() {
	r.Succeeded, r.Failed, r.Copied, r.Skipped = 0, 0, 0, 0
	for _, res := range r.Results {
		switch res.Status {
		case StatusDecrypted, StatusDecompiled:
			r.Succeeded++
		case StatusCopied:
			r.Copied++
		case StatusSkipped:
			r.Skipped++
		case StatusFailed:
			r.Failed++
		}
	}
}

// Bytes returns the total number of bytes written by the run.
func (r Report) Bytes() int64 {
	var n int64
	for _, res := range r.Results {
		n += res.Bytes
	}
	return n
}
