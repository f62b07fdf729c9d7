package gps

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Payload formats accepted by Encode and Decode.
const (
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

var ErrUnknownFormat = errors.New("gps: unknown payload format")

// ValidFormat reports whether format is one of the supported payload formats.
func ValidFormat(format string) bool {
	return format == FormatJSON || format == FormatMsgpack
}

// Encode serialises a fix for MQTT or HTTP.
func Encode(f Fix, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.Marshal(f)
	case FormatMsgpack:
		return msgpack.Marshal(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Decode is the inverse of Encode.
func Decode(data []byte, format string) (Fix, error) {
	var f Fix
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &f)
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return f, fmt.Errorf("decode %s fix: %w", format, err)
	}
	return f, nil
}
