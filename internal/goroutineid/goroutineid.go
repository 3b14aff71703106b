// Package goroutineid reads the runtime id of the calling goroutine. The
// session registry uses it to find the run executing on the current
// goroutine, since script code carries no handle to its own session.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
)

// The stack header "goroutine N [status]:" fits well within 64 bytes;
// runtime.Stack truncates the rest.
var headerPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

var headerPrefix = []byte("goroutine ")

// Get returns the id of the calling goroutine, or 0 if it cannot be parsed.
func Get() int64 {
	buf := headerPool.Get().(*[]byte)
	defer headerPool.Put(buf)
	n := runtime.Stack(*buf, false)
	return parseHeader((*buf)[:n])
}

// parseHeader reads the decimal id following the "goroutine " prefix. It does
// not allocate.
func parseHeader(header []byte) int64 {
	rest, ok := bytes.CutPrefix(header, headerPrefix)
	if !ok {
		return 0
	}
	var id int64
	for _, b := range rest {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}
