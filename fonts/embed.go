// Package fonts supplies the faces cards are typeset with: the Go font
// family compiled into the binary and web fonts fetched from stylesheets.
package fonts

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// EmbedPrefix marks built-in font sources.
const EmbedPrefix = "embed:"

var builtin = map[string][]byte{
	"go/regular":    goregular.TTF,
	"go/bold":       gobold.TTF,
	"go/italic":     goitalic.TTF,
	"go/bolditalic": gobolditalic.TTF,
	"go/medium":     gomedium.TTF,
	"go/mono":       gomono.TTF,
}

// Load 返回内置字体的字节数据，path 可写为 "embed:go/regular" 或直接 "go/regular"。
func Load(path string) ([]byte, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(path)), EmbedPrefix)
	if !strings.HasPrefix(name, "go/") {
		name = "go/" + name
	}
	data, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 可用字体 %s", path, strings.Join(Names(), ", "))
	}
	return data, nil
}

// Names lists the built-in font names, sorted.
func Names() []string {
	out := make([]string, 0, len(builtin))
	for k := range builtin {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ForWeight picks the closest built-in face for a CSS weight.
func ForWeight(weight int, italic bool) string {
	switch {
	case weight >= 600 && italic:
		return EmbedPrefix + "go/bolditalic"
	case weight >= 600:
		return EmbedPrefix + "go/bold"
	case weight >= 500 && !italic:
		return EmbedPrefix + "go/medium"
	case italic:
		return EmbedPrefix + "go/italic"
	default:
		return EmbedPrefix + "go/regular"
	}
}
