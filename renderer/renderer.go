package renderer

import (
	"fmt"
	"strings"

	"github.com/ByLCY/lyricard/layout"
)

// Renderer 将布局结果输出为最终文件，例如 PDF 或图像。
// Render 返回包含全部页面的 PDF 字节切片以及可能的错误。
type Renderer interface {
	Render(result *layout.Result) ([]byte, error)
}

// FaceRenderer 可以单独输出某一面（front/back）。
type FaceRenderer interface {
	Renderer
	RenderFace(result *layout.Result, face string, format Format) ([]byte, error)
}

// Format is an output encoding.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat accepts pdf, svg and png, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatSVG, FormatPNG:
		return f, nil
	case "":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want pdf, svg or png)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPNG:
		return "image/png"
	default:
		return "application/pdf"
	}
}
