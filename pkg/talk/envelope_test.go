package talk

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/talkbridge/internal/ocstest"
)

func TestElements(t *testing.T) {
	tests := []struct {
		name string
		data any
		want int
	}{
		{"absent payload", nil, 0},
		{"empty element", "", 0},
		{"empty mapping", map[string]any{}, 0},
		{"no element key", map[string]any{"other": "x"}, 0},
		{"element empty string", map[string]any{"element": ""}, 0},
		{"single mapping", map[string]any{"element": map[string]any{"token": "a"}}, 1},
		{"list of one", map[string]any{"element": []any{map[string]any{"token": "a"}}}, 1},
		{"list of three", map[string]any{"element": []any{
			map[string]any{"token": "a"},
			map[string]any{"token": "b"},
			map[string]any{"token": "c"},
		}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Elements(tt.data)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestElements_SingleMatchesListOfOne(t *testing.T) {
	single, err := Elements(map[string]any{"element": map[string]any{"token": "a"}})
	require.NoError(t, err)
	list, err := Elements(map[string]any{"element": []any{map[string]any{"token": "a"}}})
	require.NoError(t, err)
	assert.Equal(t, list, single)
}

func TestElements_UnexpectedShape(t *testing.T) {
	_, err := Elements(map[string]any{"element": "scalar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructure))

	_, err = Elements(42)
	assert.ErrorIs(t, err, ErrStructure)
}

func TestStrings(t *testing.T) {
	got, err := Strings(map[string]any{"element": "audio"})
	require.NoError(t, err)
	assert.Equal(t, []string{"audio"}, got)

	got, err = Strings(map[string]any{"element": []any{"audio", "video"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"audio", "video"}, got)

	got, err = Strings("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeEnvelope_XML(t *testing.T) {
	body := ocstest.OKXML(ocstest.Elements(ocstest.RoomXML("a", 2, "A"), ocstest.RoomXML("b", 3, "B")))

	env, err := DecodeEnvelope(XMLDecoder{}, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "ok", env.Meta.Status)
	assert.Equal(t, 200, env.Meta.StatusCode)
	assert.False(t, env.Meta.Failed())

	els, err := Elements(env.Data)
	require.NoError(t, err)
	require.Len(t, els, 2)
	assert.Equal(t, "a", els[0]["token"])
	assert.Equal(t, "b", els[1]["token"])
}

func TestDecodeEnvelope_XMLSingleElement(t *testing.T) {
	env, err := DecodeEnvelope(XMLDecoder{}, []byte(ocstest.OKXML(ocstest.Elements(ocstest.RoomXML("a", 2, "A")))))
	require.NoError(t, err)

	els, err := Elements(env.Data)
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "a", els[0]["token"])
}

func TestDecodeEnvelope_XMLEmptyData(t *testing.T) {
	env, err := DecodeEnvelope(XMLDecoder{}, []byte(ocstest.OKXML("")))
	require.NoError(t, err)

	els, err := Elements(env.Data)
	require.NoError(t, err)
	assert.Empty(t, els)
}

type failingDecoder struct{ err error }

func (d failingDecoder) Decode([]byte) (map[string]any, error) { return nil, d.err }

func TestDecodeEnvelope_ParseError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	_, err := DecodeEnvelope(failingDecoder{err: cause}, []byte("<ocs"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStructure)
}

func TestDecodeEnvelope_MissingMeta(t *testing.T) {
	_, err := DecodeEnvelope(XMLDecoder{}, []byte(`<ocs><data/></ocs>`))
	var structErr *StructureError
	require.ErrorAs(t, err, &structErr)
	assert.Equal(t, "ocs.meta", structErr.Path)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		kind error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusPreconditionFailed, ErrPreconditionFailed},
		{http.StatusTeapot, ErrService},
		{http.StatusInternalServerError, ErrService},
	}

	kinds := []error{
		ErrBadRequest, ErrUnauthorized, ErrForbidden, ErrNotFound,
		ErrConflict, ErrPreconditionFailed, ErrService,
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := Classify(Meta{Status: "failure", StatusCode: tt.code, Message: "boom"}, tt.code)
			for _, kind := range kinds {
				if kind == tt.kind {
					assert.ErrorIs(t, err, kind)
				} else {
					assert.NotErrorIs(t, err, kind)
				}
			}

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.code, svcErr.StatusCode)
			assert.Equal(t, "boom", svcErr.Message)
		})
	}
}
