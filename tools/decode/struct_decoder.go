package decode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 是否启用宽松解码（默认 true）：
	// 例如 "123" -> int、1.0 -> int64 等。
	WeaklyTypedInput bool
}

// DefaultOptions 返回默认选项。
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: true,
	}
}

// WithWeaklyTypedInput 便捷开关。
func WithWeaklyTypedInput(v bool) Options {
	return Options{WeaklyTypedInput: v}
}

// DecodeMap 将 map[string]any 动态解码到任意结构体 T。
// 结构体字段读取使用 `json` tag，常用于配置合并与外部 JSON 响应。
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("map is nil")
	}

	// 解析选项
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}

	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return &out, nil
}

// -----------------------------
// 基础读取工具（动态场景常用）
// -----------------------------

// ReadString 从 map 中读取 string 字段。
func ReadString(m map[string]any, key string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("map is nil")
	}
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	switch t := v.(type) {
	case string:
		return t, nil
	default:
		return "", fmt.Errorf("field %q not string (got %T)", key, v)
	}
}

// ReadInt64 从 map 中读取整数（兼容 float64 / int / string 数字）。
func ReadInt64(m map[string]any, key string) (int64, error) {
	if m == nil {
		return 0, fmt.Errorf("map is nil")
	}
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		// 尝试把数字字符串转成 int64
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q string parse int64: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("field %q type %T not number", key, v)
	}
}

// ReadMapSlice 从 map 中读取对象数组（兼容 []any）。
func ReadMapSlice(m map[string]any, key string) ([]map[string]any, error) {
	if m == nil {
		return nil, fmt.Errorf("map is nil")
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q type %T not array", key, v)
	}
	out := make([]map[string]any, 0, len(arr))
	for _, it := range arr {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q element type %T not object", key, it)
		}
		out = append(out, obj)
	}
	return out, nil
}

// -----------------------------
// Decode Hooks
// -----------------------------

// floatToIntHook：把 float64 自动转为 int / int32 / int64。
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook：把 JSON 字符串自动转为 map[string]any（用于某些嵌套字符串 JSON 字段）。
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
