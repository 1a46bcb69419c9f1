package model

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Null:
		return "", d.Null()
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", errors.Errorf("expected string, got %s", d.Next())
	}
}

func decodeInt64(d *jx.Decoder) (int64, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.Number:
		return d.Int64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		return strconv.ParseInt(s, 10, 64)
	default:
		return 0, errors.Errorf("expected number, got %s", d.Next())
	}
}
