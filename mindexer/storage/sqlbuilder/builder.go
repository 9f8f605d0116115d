package sqlbuilder

import "strconv"

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota // ?1, ?2 (sqlite)
	PlaceholderDollar                           // $1, $2 (postgres)
)

// Placeholder renders the n-th (1-based) parameter marker in style
func Placeholder(style PlaceholderStyle, n int) string {
	switch style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(n)
	default:
		return "?" + strconv.Itoa(n)
	}
}

// Builder collects statement arguments and hands out their markers
type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

// Arg appends v and returns its placeholder
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	return Placeholder(b.Style, len(b.args))
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }
