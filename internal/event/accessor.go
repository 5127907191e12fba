package event

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// 位置数组访问器：下标越界、非数组或类型不符一律返回默认值

func index(arr gjson.Result, i int) gjson.Result {
	if !arr.IsArray() {
		return gjson.Result{}
	}
	return arr.Get(strconv.Itoa(i))
}

func intAt(arr gjson.Result, i int, def int64) int64 {
	r := index(arr, i)
	if r.Type != gjson.Number {
		return def
	}
	return r.Int()
}

func uintAt(arr gjson.Result, i int, def uint64) uint64 {
	r := index(arr, i)
	if r.Type != gjson.Number || r.Num < 0 {
		return def
	}
	return r.Uint()
}

func stringAt(arr gjson.Result, i int, def string) string {
	r := index(arr, i)
	if r.Type != gjson.String {
		return def
	}
	return r.Str
}
