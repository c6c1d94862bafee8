package interactive

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEnums = `{
  "socketEvent": ["order", "trade", "position", "logout"],
  "exchangeSegment": {
    "NSECM": {"orderType": ["LIMIT", "MARKET"], "productType": ["MIS", "CNC"], "timeInForce": ["DAY", "IOC"]},
    "NSEFO": {"orderType": ["LIMIT", "STOPLIMIT"], "productType": ["NRML"]},
    "MCXFO": {}
  },
  "exchangeInstrumentIDs": [22, 2885, 1.5],
  "broken": "scalar"
}`

func parseEnums(t *testing.T, raw string) map[string]json.RawMessage {
	t.Helper()
	var enums map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &enums))
	return enums
}

func TestBuildCapabilities(t *testing.T) {
	caps := BuildCapabilities(parseEnums(t, sampleEnums))

	assert.Equal(t, Set{"order": "order", "trade": "trade", "position": "position", "logout": "logout"}, caps.Tables["socketEvent"])
	assert.Equal(t, []string{"MCXFO", "NSECM", "NSEFO"}, caps.Values("exchangeSegment"))
	assert.Equal(t, []string{"LIMIT", "MARKET", "STOPLIMIT"}, caps.Values(CategoryOrderTypes))
	assert.Equal(t, []string{"CNC", "MIS", "NRML"}, caps.Values(CategoryProductTypes))
	assert.Equal(t, []string{"DAY", "IOC"}, caps.Values(CategoryTimeInForce))
	assert.Equal(t, []string{"1.5", "22", "2885"}, caps.Values("exchangeInstrumentIDs"))

	assert.True(t, caps.Has("exchangeSegment", "NSEFO"))
	assert.True(t, caps.Has(CategoryOrderTypes, "MARKET"))
	assert.False(t, caps.Has("exchangeSegment", "BSECM"))
	assert.False(t, caps.Has("missing", "x"))

	_, hasBroken := caps.Tables["broken"]
	assert.False(t, hasBroken, "无法识别的格式应被跳过")
	assert.Equal(t, []string{"exchangeInstrumentIDs", "exchangeSegment", "socketEvent"}, caps.Categories())
}

func TestBuildCapabilitiesIdempotent(t *testing.T) {
	enums := parseEnums(t, sampleEnums)
	first := BuildCapabilities(enums)
	second := BuildCapabilities(enums)
	assert.Equal(t, first, second)
}

func TestBuildCapabilitiesEmpty(t *testing.T) {
	caps := BuildCapabilities(nil)
	assert.Empty(t, caps.Tables)
	assert.Empty(t, caps.OrderTypes)
	assert.Empty(t, caps.Categories())

	var none *Capabilities
	assert.False(t, none.Has(CategoryOrderTypes, "LIMIT"))
	assert.Empty(t, none.Values(CategoryOrderTypes))
	assert.Nil(t, none.Categories())
}

func TestBuildCapabilitiesUnionAcrossCategories(t *testing.T) {
	caps := BuildCapabilities(parseEnums(t, `{
  "a": {"NSECM": {"orderType": ["Limit"]}},
  "b": {"NSEFO": {"orderType": ["Market"], "timeInForce": ["DAY"]}}
}`))
	assert.Equal(t, []string{"Limit", "Market"}, caps.Values(CategoryOrderTypes))
	assert.Equal(t, []string{"DAY"}, caps.Values(CategoryTimeInForce))
	assert.Equal(t, []string{"NSECM"}, caps.Values("a"))
	assert.Equal(t, []string{"NSEFO"}, caps.Values("b"))
}

func TestCapabilitiesClone(t *testing.T) {
	caps := BuildCapabilities(parseEnums(t, sampleEnums))
	clone := caps.Clone()
	assert.Equal(t, caps, clone)

	clone.ProductTypes["BO"] = "BO"
	clone.Tables["socketEvent"]["joined"] = "joined"
	assert.False(t, caps.Has(CategoryProductTypes, "BO"))
	assert.False(t, caps.Has("socketEvent", "joined"))

	var none *Capabilities
	assert.Nil(t, none.Clone())
}
