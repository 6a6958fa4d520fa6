package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEncodeRequest(t *testing.T) {
	b, err := EncodeRequest(7, "Runtime.evaluate", map[string]any{"expression": "2 + 2", "returnByValue": true})
	require.NoError(t, err)

	assert.Equal(t, int64(7), gjson.GetBytes(b, "id").Int())
	assert.Equal(t, "Runtime.evaluate", gjson.GetBytes(b, "method").String())
	assert.Equal(t, "2 + 2", gjson.GetBytes(b, "params.expression").String())
	assert.True(t, gjson.GetBytes(b, "params.returnByValue").Bool())
}

func TestEncodeRequestNilParams(t *testing.T) {
	b, err := EncodeRequest(1, "Console.enable", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"method":"Console.enable","params":{}}`, string(b))
}

func TestEncodeRequestRejectsNonObjectParams(t *testing.T) {
	_, err := EncodeRequest(1, "Runtime.evaluate", []string{"x"})
	assert.Error(t, err)

	_, err = EncodeRequest(1, "", nil)
	assert.Error(t, err)
}

func TestDecodeResponse(t *testing.T) {
	m, err := Decode([]byte(`{"id":3,"result":{"result":{"type":"number","value":4}}}`))
	require.NoError(t, err)
	assert.True(t, m.IsResponse())
	assert.False(t, m.IsEvent())
	assert.Equal(t, int64(3), m.ID)
	assert.Equal(t, int64(4), gjson.GetBytes(m.Result, "result.value").Int())
	assert.Nil(t, m.Error)
}

func TestDecodeErrorResponse(t *testing.T) {
	m, err := Decode([]byte(`{"id":9,"error":{"code":-32601,"message":"'Foo.enable' wasn't found"}}`))
	require.NoError(t, err)
	require.NotNil(t, m.Error)
	assert.Equal(t, -32601, m.Error.Code)
	assert.Contains(t, m.Error.Error(), "wasn't found")
}

func TestDecodeEvent(t *testing.T) {
	m, err := Decode([]byte(`{"method":"Runtime.consoleAPICalled","params":{"type":"log"}}`))
	require.NoError(t, err)
	assert.True(t, m.IsEvent())
	assert.Equal(t, "Runtime.consoleAPICalled", m.Method)
	assert.Equal(t, "log", gjson.GetBytes(m.Params, "type").String())
}

func TestDecodeMalformed(t *testing.T) {
	for name, in := range map[string]string{
		"invalid json": `{"id":`,
		"array":        `[1,2]`,
		"empty object": `{}`,
		"string id":    `{"id":"check_1","result":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
