package mathml

// Error describes TeX that could not be converted.
type Error struct {
	TeX     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
