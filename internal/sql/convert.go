package sql

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

func toDataStoreValue(v any, col *schema.Column) any {
	switch x := v.(type) {
	case *big.Float:
		return x.Text('f', -1)
	case *big.Int:
		return x.String()
	case language.Tag:
		return x.String()
	case rune:
		if col != nil && col.JavaType() == schema.JavaChar {
			return string(x)
		}
		return int64(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04:05",
}

func readValue(raw any, t schema.JavaType, col *schema.Column) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch t {
	case schema.JavaBoolean:
		return toBool(raw)
	case schema.JavaByte:
		n, err := toInt64(raw)
		return int8(n), err
	case schema.JavaShort:
		n, err := toInt64(raw)
		return int16(n), err
	case schema.JavaInt:
		n, err := toInt64(raw)
		return int32(n), err
	case schema.JavaLong:
		return toInt64(raw)
	case schema.JavaFloat:
		f, err := toFloat64(raw)
		return float32(f), err
	case schema.JavaDouble:
		return toFloat64(raw)
	case schema.JavaChar:
		return toRune(raw)
	case schema.JavaString, schema.JavaClob:
		return toString(raw), nil
	case schema.JavaBigDecimal:
		return toBigFloat(raw)
	case schema.JavaBigInteger:
		return toBigInt(raw)
	case schema.JavaNumber:
		switch x := raw.(type) {
		case int64, float64:
			return x, nil
		}
		return toFloat64(raw)
	case schema.JavaDate, schema.JavaSQLDate, schema.JavaTime, schema.JavaTimestamp:
		return toTime(raw)
	case schema.JavaBytes, schema.JavaBlob:
		return toBytes(raw), nil
	case schema.JavaLocale:
		return toLocale(raw)
	case schema.JavaAsciiStream, schema.JavaCharStream:
		return strings.NewReader(toString(raw)), nil
	case schema.JavaBinaryStream:
		return bytes.NewReader(toBytes(raw)), nil
	case schema.JavaArray, schema.JavaSQLArray:
		if arr, ok := raw.([]any); ok {
			return arr, nil
		}
		return parseArrayText(toString(raw)), nil
	case schema.JavaEntity, schema.JavaCollection, schema.JavaMap:
		return nil, fmt.Errorf("cannot read %s values from a column", t)
	}
	return readObject(raw, col), nil
}

// readObject normalizes a raw value when no type is requested. Binary
// columns keep their bytes; other byte slices become strings.
func readObject(raw any, col *schema.Column) any {
	b, ok := raw.([]byte)
	if !ok {
		return raw
	}
	if col != nil {
		switch col.Type() {
		case schema.Blob, schema.Varbinary:
			return bytes.Clone(b)
		}
	}
	return string(b)
}

func toBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case []byte:
		return parseBool(string(x))
	case string:
		return parseBool(x)
	}
	return false, fmt.Errorf("cannot read %T as boolean", raw)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes":
		return true, nil
	case "0", "f", "false", "n", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("cannot read %q as boolean", s)
}

func toInt64(raw any) (int64, error) {
	switch x := raw.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(x)), 10, 64)
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot read %T as integer", raw)
}

func toFloat64(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(x)), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("cannot read %T as floating point", raw)
}

func toRune(raw any) (rune, error) {
	switch x := raw.(type) {
	case int64:
		return rune(x), nil
	case []byte, string:
		s := toString(x)
		if s == "" {
			return 0, nil
		}
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	}
	return 0, fmt.Errorf("cannot read %T as char", raw)
}

func toString(raw any) string {
	switch x := raw.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprint(raw)
}

func toBigFloat(raw any) (*big.Float, error) {
	switch x := raw.(type) {
	case int64:
		return new(big.Float).SetInt64(x), nil
	case float64:
		return big.NewFloat(x), nil
	}
	f, _, err := big.ParseFloat(strings.TrimSpace(toString(raw)), 10, 256, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("cannot read %v as decimal: %w", raw, err)
	}
	return f, nil
}

func toBigInt(raw any) (*big.Int, error) {
	switch x := raw.(type) {
	case int64:
		return big.NewInt(x), nil
	case float64:
		i, _ := big.NewFloat(x).Int(nil)
		return i, nil
	}
	i, ok := new(big.Int).SetString(strings.TrimSpace(toString(raw)), 10)
	if !ok {
		return nil, fmt.Errorf("cannot read %v as big integer", raw)
	}
	return i, nil
}

func toTime(raw any) (time.Time, error) {
	switch x := raw.(type) {
	case time.Time:
		return x, nil
	case int64:
		return time.Unix(x, 0).UTC(), nil
	}
	s := strings.TrimSpace(toString(raw))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read %q as time", s)
}

func toBytes(raw any) []byte {
	switch x := raw.(type) {
	case []byte:
		return bytes.Clone(x)
	case string:
		return []byte(x)
	}
	return []byte(fmt.Sprint(raw))
}

func toLocale(raw any) (language.Tag, error) {
	s := strings.ReplaceAll(strings.TrimSpace(toString(raw)), "_", "-")
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("cannot read %q as locale: %w", s, err)
	}
	return tag, nil
}

// parseArrayText reads the "{a,b,c}" array text form.
func parseArrayText(s string) []any {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "{"), "}")
	if s == "" {
		return []any{}
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = strings.Trim(strings.TrimSpace(p), `"`)
	}
	return out
}
