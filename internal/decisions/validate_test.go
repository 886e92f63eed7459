package decisions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "schemas")
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, dir, parent, "go.mod not found above test dir")
		dir = parent
	}
}

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(schemaDir(t))
	require.NoError(t, err)
	return v
}

func TestValidateSubmit_Accepts(t *testing.T) {
	v := newValidator(t)

	msg, err := v.ValidateSubmit([]byte(`{
	  "type":"SUBMIT",
	  "protocol_version":"1.0",
	  "game_id":"G1",
	  "round":3,
	  "team_id":"alpha",
	  "decisions":{
	    "research":{"new_projects":[{"tech_id":"bat_liion","risk_level":"moderate"}]},
	    "patents":{"filings":["bat_fastcharge"]},
	    "products":{"new_products":[{
	      "id":"p1","name":"Volt One","segment":"budget",
	      "features":{"battery":60,"camera":30},"price":229
	    }]},
	    "pricing":{"prices":{"p0":199.5}}
	  }
	}`))
	require.NoError(t, err)
	assert.Equal(t, "G1", msg.GameID)
	assert.Equal(t, 3, msg.Round)
	assert.Equal(t, "alpha", msg.TeamID)

	set, err := v.Parse(msg.Decisions)
	require.NoError(t, err)
	require.NotNil(t, set.Research)
	assert.Equal(t, "bat_liion", set.Research.NewProjects[0].TechID)
	require.NotNil(t, set.Pricing)
	assert.Equal(t, 199.5, set.Pricing.Prices["p0"])
}

func TestValidateSubmit_Rejects(t *testing.T) {
	v := newValidator(t)

	cases := map[string]string{
		"not json":        `{`,
		"wrong type":      `{"type":"HELLO","protocol_version":"1.0","game_id":"G","round":1,"team_id":"a","decisions":{}}`,
		"missing team":    `{"type":"SUBMIT","protocol_version":"1.0","game_id":"G","round":1,"decisions":{}}`,
		"round zero":      `{"type":"SUBMIT","protocol_version":"1.0","game_id":"G","round":0,"team_id":"a","decisions":{}}`,
		"extra field":     `{"type":"SUBMIT","protocol_version":"1.0","game_id":"G","round":1,"team_id":"a","decisions":{},"cheat":true}`,
		"decisions array": `{"type":"SUBMIT","protocol_version":"1.0","game_id":"G","round":1,"team_id":"a","decisions":[]}`,
	}
	for name, raw := range cases {
		_, err := v.ValidateSubmit([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestParse_RejectsBadPayloads(t *testing.T) {
	v := newValidator(t)

	cases := map[string]string{
		"unknown module":   `{"marketing":{}}`,
		"bad risk":         `{"research":{"new_projects":[{"tech_id":"x","risk_level":"yolo"}]}}`,
		"negative price":   `{"pricing":{"prices":{"p1":-5}}}`,
		"feature over 100": `{"products":{"new_products":[{"id":"p","name":"P","segment":"budget","features":{"battery":150},"price":100}]}}`,
		"missing price":    `{"products":{"new_products":[{"id":"p","name":"P","segment":"budget","features":{}}]}}`,
		"typo field":       `{"patents":{"fillings":["x"]}}`,
	}
	for name, raw := range cases {
		_, err := v.Parse(json.RawMessage(raw))
		assert.Error(t, err, name)

		var derr *Error
		require.ErrorAs(t, err, &derr, name)
		assert.True(t, IsKnownCode(derr.Code), name)
	}
}

func TestParse_EmptySetIsValid(t *testing.T) {
	v := newValidator(t)
	set, err := v.Parse(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Nil(t, set.Research)
	assert.Nil(t, set.Patents)
	assert.Nil(t, set.Products)
	assert.Nil(t, set.Pricing)
}
