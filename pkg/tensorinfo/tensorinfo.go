// Package tensorinfo describes a named tensor's element type and shape,
// as reported by a loaded engine session or declared in a ModelConfig.
package tensorinfo

import (
	"fmt"
	"strings"

	"inferd/pkg/dtype"
)

// DynamicDim is the shape value an engine uses to mean "any size at
// this axis". Engine-reported shapes carry it; declared ModelConfig
// shapes do not by convention, though nothing rejects one.
const DynamicDim int64 = -1

// TensorInfo is the (type, shape) pair discovered from a loaded session,
// or declared for an input/output in a ModelConfig.
type TensorInfo struct {
	Name  string      `json:"name"`
	DType dtype.DType `json:"dtype"`
	Shape []int64     `json:"shape"`
}

// IsDynamic reports whether dim is the "matches anything" sentinel.
func IsDynamic(dim int64) bool { return dim == DynamicDim }

// ElementCount multiplies out the shape. It is only meaningful for
// fully-specified shapes (no negative dims); callers must not call this
// on a shape carrying dynamic dims without first substituting concrete
// values (e.g. the batch axis).
func ElementCount(shape []int64) int64 {
	var n int64 = 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// WithLeadingDim returns a copy of shape with n prepended, used to graft
// the batch axis onto a per-request declared shape.
func WithLeadingDim(n int64, shape []int64) []int64 {
	out := make([]int64, 0, len(shape)+1)
	out = append(out, n)
	out = append(out, shape...)
	return out
}

func (t TensorInfo) String() string {
	parts := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("%s %s[%s]", t.Name, t.DType, strings.Join(parts, ","))
}
