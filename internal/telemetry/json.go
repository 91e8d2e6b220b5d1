package telemetry

import (
	"math"
	"strconv"
)

type field struct {
	name  string
	value float64
}

// AppendJSONFloat appends f to dst as a JSON value. NaN and infinities are
// written as the strings "NaN", "Infinity" and "-Infinity", which a browser
// turns back into numbers with Number().
func AppendJSONFloat(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(dst, `"Infinity"`...)
	case math.IsInf(f, -1):
		return append(dst, `"-Infinity"`...)
	}
	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

func marshalObject(fields []field) ([]byte, error) {
	buf := make([]byte, 0, 24*len(fields))
	buf = append(buf, '{')
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, f.name)
		buf = append(buf, ':')
		buf = AppendJSONFloat(buf, f.value)
	}
	return append(buf, '}'), nil
}
