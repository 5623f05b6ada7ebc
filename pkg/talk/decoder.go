package talk

import (
	"github.com/clbanning/mxj/v2"
)

// Decoder turns a raw response document into a nested mapping.
type Decoder interface {
	Decode(body []byte) (map[string]any, error)
}

// XMLDecoder decodes XML with mxj. Values are left as strings; a lone child
// element becomes a mapping, repeated children become a list and an empty
// element becomes "".
type XMLDecoder struct{}

// Decode implements Decoder.
func (XMLDecoder) Decode(body []byte) (map[string]any, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, err
	}
	return map[string]any(m), nil
}
