package avr

// framer splits a byte stream into lines terminated by any run of CR/LF.
// Empty fragments are dropped and an unterminated tail is kept until more
// data arrives.
type framer struct {
	buf []byte
}

// maxPartial bounds the unterminated tail.
const maxPartial = 4096

func (f *framer) push(data []byte) []string {
	var lines []string
	for _, b := range data {
		if b == '\r' || b == '\n' {
			if len(f.buf) > 0 {
				lines = append(lines, string(f.buf))
				f.buf = f.buf[:0]
			}
			continue
		}
		if len(f.buf) >= maxPartial {
			f.buf = f.buf[:0]
		}
		f.buf = append(f.buf, b)
	}
	return lines
}
