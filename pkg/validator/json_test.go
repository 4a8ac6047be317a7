package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SafeNest/QueryShield/pkg/types"
)

func TestValidateDocument_CleanPayload(t *testing.T) {
	e := newTestEngine(t)

	body := []byte(`{
		"name": "Jane Doe",
		"message": "Tell me a story about dragons",
		"count": 3,
		"active": true,
		"tags": ["fantasy", "bedtime"]
	}`)

	verdict, err := e.validator.ValidateDocument(body, "api.request")
	require.NoError(t, err)
	assert.True(t, verdict.Allowed)
}

func TestValidateDocument_BlocksNestedValue(t *testing.T) {
	e := newTestEngine(t)

	body := []byte(`{
		"profile": {
			"bio": "hello",
			"links": ["https://example.com", "'; DROP TABLE users; --"]
		}
	}`)

	verdict, err := e.validator.ValidateDocument(body, "api.request")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, types.AttackSQL, verdict.AttackType)
}

func TestValidateDocument_BlocksMaliciousKey(t *testing.T) {
	e := newTestEngine(t)

	body := []byte(`{"$where": "this.credits > 0"}`)

	verdict, err := e.validator.ValidateDocument(body, "api.request")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
}

func TestValidateDocument_MalformedJSONIsAnError(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.validator.ValidateDocument([]byte(`{"broken":`), "api.request")
	assert.Error(t, err)
}
