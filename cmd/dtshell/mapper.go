package main

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
)

// int64Mapper decodes int64 flags. HCL numbers reach kong as floats, so 1048576 in a config file arrives as
// "1.048576e+06". Those are accepted as long as they are whole and fit in an int64.
var int64Mapper = kong.TypeMapper(reflect.TypeOf(int64(0)), kong.MapperFunc(decodeInt64))

func decodeInt64(ctx *kong.DecodeContext, target reflect.Value) error {
	token, err := ctx.Scan.PopValue("int")
	if err != nil {
		return err
	}
	var text string
	switch v := token.Value.(type) {
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		text = fmt.Sprintf("%v", v)
	}
	n, err := parseWholeNumber(text)
	if err != nil {
		return err
	}
	target.SetInt(n)
	return nil
}

func parseWholeNumber(text string) (int64, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errors.Errorf("expected a whole number but got %q", text)
	}
	return int64(f), nil
}
