// Package document turns decrypted exdf payloads into readable XML text.
//
// DecodeText converts raw bytes to a Go string: UTF-16 payloads carrying a
// BOM are transcoded, a UTF-8 BOM is dropped, and anything else must already
// be valid UTF-8. Indent re-indents a well-formed XML document with two
// spaces per level, leaving malformed input untouched.
package document
