package handler

import (
	"strconv"
	"strings"

	"github.com/prn-tf/kvgate/internal/codec"
)

// byteRange is an inclusive byte interval within an object.
type byteRange struct {
	start int64
	end   int64
}

// parseRange interprets a Range header value against an object of the given
// size. Only a single bytes range is supported: "bytes=S-E", "bytes=S-" or
// "bytes=-N". Anything else, and any range that cannot be satisfied, returns
// ok=false, which the caller answers with 416.
//
// A suffix range covering the whole object degrades to 0..size-1; an explicit
// end past the object is clamped to size-1. Every range against a zero-size
// object is unsatisfiable.
func parseRange(value string, size int64) (byteRange, bool) {
	if size <= 0 {
		return byteRange{}, false
	}

	v := codec.CollapseSpaces(value)
	v, found := strings.CutPrefix(v, "bytes=")
	if !found || strings.Contains(v, ",") {
		return byteRange{}, false
	}

	left, right, found := strings.Cut(v, "-")
	if !found {
		return byteRange{}, false
	}

	if left == "" {
		// Suffix form: last N bytes.
		suffix, err := strconv.ParseInt(right, 10, 64)
		if err != nil || suffix <= 0 {
			return byteRange{}, false
		}
		if suffix >= size {
			return byteRange{start: 0, end: size - 1}, true
		}
		return byteRange{start: size - suffix, end: size - 1}, true
	}

	start, err := strconv.ParseInt(left, 10, 64)
	if err != nil {
		return byteRange{}, false
	}

	end := size - 1
	if right != "" {
		end, err = strconv.ParseInt(right, 10, 64)
		if err != nil {
			return byteRange{}, false
		}
	}

	if start < 0 || start >= size || end < start {
		return byteRange{}, false
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{start: start, end: end}, true
}
