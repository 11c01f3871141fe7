package dao

// Parameter narrows a List call; the only parameter currently understood by
// the built-in stores is "Stage" with a string or []string value.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
