package layout

import (
	"encoding/json"
	"fmt"

	"github.com/ByLCY/lyricard/atomicfile"
)

// DebugJSON 将布局结果编码为缩进 JSON，便于调试或可视化。
func DebugJSON(res *Result) ([]byte, error) {
	if res == nil {
		return []byte("null\n"), nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode layout: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteDebugJSON 将布局结果写入 path（先写临时文件再替换）。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	data, err := DebugJSON(res)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o644)
}
