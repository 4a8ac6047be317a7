package cache

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestLearnedPatternStore_Persist(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewLearnedPatternStore(client, quietLogger())

	patterns := []string{`['"]\s*(?:or|and)\s+\w`, `\{\s*"?\$\w+"?\s*:`}
	payload, err := json.Marshal(patterns)
	require.NoError(t, err)

	mock.ExpectSet(learnedPatternsKey, payload, 0).SetVal("OK")

	require.NoError(t, store.Persist(context.Background(), patterns))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLearnedPatternStore_Load(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewLearnedPatternStore(client, quietLogger())

	stored := []string{`foo\d+`}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	mock.ExpectGet(learnedPatternsKey).SetVal(string(payload))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stored, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLearnedPatternStore_LoadMissingKeyIsEmpty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewLearnedPatternStore(client, quietLogger())

	mock.ExpectGet(learnedPatternsKey).RedisNil()

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLearnedPatternStore_Drop(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewLearnedPatternStore(client, quietLogger())

	mock.ExpectDel(learnedPatternsKey).SetVal(1)

	require.NoError(t, store.Drop(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
