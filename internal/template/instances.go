package template

// NewActiveService creates the boolean service used for visibility and
// active-state templates.
func NewActiveService(backend Backend, opts ...Option) *Service[bool] {
	return New[bool](backend, ParseActive, DefaultActive, append([]Option{WithName("active")}, opts...)...)
}

// NewColorService creates the CSS color service.
func NewColorService(backend Backend, opts ...Option) *Service[string] {
	return New[string](backend, ParseColor, DefaultColor, append([]Option{WithName("color")}, opts...)...)
}

// NewIconService creates the icon identifier service.
func NewIconService(backend Backend, opts ...Option) *Service[string] {
	return New[string](backend, ParseIcon, DefaultIcon, append([]Option{WithName("icon")}, opts...)...)
}
