package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocument(t *testing.T) {
	raw, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Swagger     string                            `json:"swagger"`
		Paths       map[string]map[string]interface{} `json:"paths"`
		Definitions map[string]interface{}            `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths["/api/v1/sales/finalize"], "post")
	assert.Contains(t, doc.Paths["/api/v1/devices/{id}"], "put")
	assert.Contains(t, doc.Paths["/health"], "get")
	assert.Contains(t, doc.Definitions, "service.FinalizeRequest")
}
