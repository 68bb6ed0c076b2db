package crypto

import (
	"bufio"
	"bytes"
	"io"
	"math/bits"
)

// exdfMask is XORed into every byte after bit reversal.
const exdfMask = 0xAA

// sniffLen is how many leading bytes Sniff inspects.
const sniffLen = 64

var (
	decryptTable [256]byte
	encryptTable [256]byte
)

func init() {
	for i := 0; i < 256; i++ {
		b := byte(i)
		decryptTable[i] = bits.Reverse8(b) ^ exdfMask
		encryptTable[i] = bits.Reverse8(b ^ exdfMask)
	}
}

// Decrypt reverses the bits of each byte then XORs it with 0xAA.
func Decrypt(data []byte) []byte {
	return apply(&decryptTable, data)
}

// Encrypt is the inverse of Decrypt.
func Encrypt(data []byte) []byte {
	return apply(&encryptTable, data)
}

func apply(table *[256]byte, data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = table[b]
	}
	return out
}

type decryptReader struct {
	r io.Reader
}

// NewDecryptReader returns a reader that yields the decrypted form of r.
func NewDecryptReader(r io.Reader) io.Reader {
	return &decryptReader{r: r}
}

func (d *decryptReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	for i := 0; i < n; i++ {
		p[i] = decryptTable[p[i]]
	}
	return n, err
}

var xmlLeadIns = [][]byte{
	{0xEF, 0xBB, 0xBF}, // UTF-8 BOM
	{0xFF, 0xFE},       // UTF-16 LE BOM
	{0xFE, 0xFF},       // UTF-16 BE BOM
}

// Sniff reports whether r looks like an exdf payload: after decryption it
// starts with an optional BOM, optional whitespace and then '<'.
func Sniff(r io.Reader) (bool, error) {
	head, err := bufio.NewReaderSize(NewDecryptReader(r), sniffLen).Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return false, err
	}
	return looksLikeXML(head), nil
}

func looksLikeXML(head []byte) bool {
	for _, bom := range xmlLeadIns {
		if bytes.HasPrefix(head, bom) {
			head = head[len(bom):]
			// UTF-16: drop the zero bytes so the ASCII check below still works.
			if len(bom) == 2 {
				head = bytes.ReplaceAll(head, []byte{0}, nil)
			}
			break
		}
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	return len(head) > 0 && head[0] == '<'
}
