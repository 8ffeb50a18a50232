package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubIndexes struct {
	err   error
	model mongo.IndexModel
}

func (s *stubIndexes) CreateOne(_ context.Context, model mongo.IndexModel, _ ...*options.CreateIndexesOptions) (string, error) {
	s.model = model
	if s.err != nil {
		return "", s.err
	}
	return "run_id_1", nil
}

func TestEnsureRunIndex_LogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	idx := &stubIndexes{err: errors.New("not authorized")}

	ensureRunIndex(context.Background(), idx, "raw_vacancies_2024_03_01", zap.New(core))

	assert.Equal(t, bson.D{{Key: "run_id", Value: 1}}, idx.model.Keys)
	entries := logs.FilterMessage("archive index").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "raw_vacancies_2024_03_01", fields["collection"])
	assert.Equal(t, "not authorized", fields["error"])
}

func TestEnsureRunIndex_QuietOnSuccess(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ensureRunIndex(context.Background(), &stubIndexes{}, "raw_vacancies_2024_03_01", zap.New(core))
	assert.Zero(t, logs.Len())
}
