package database

import (
	"context"
	"errors"
	"testing"

	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements()

	assert.Len(t, stmts, 1+2*len(transactionRelTypes))
	assert.Contains(t, stmts[0], "(a:Account) REQUIRE a.id IS UNIQUE")
	assert.Contains(t, stmts, "CREATE INDEX cash_out_amount IF NOT EXISTS FOR ()-[r:CASH_OUT]-() ON (r.amount)")
	assert.Contains(t, stmts, "CREATE INDEX transfer_timestamp IF NOT EXISTS FOR ()-[r:TRANSFER]-() ON (r.timestamp)")
}

func TestNeo4JClient_NotConnected(t *testing.T) {
	cfg := config.Default().Neo4J
	client := NewNeo4JClient(&cfg, logger.NewNop())

	assert.True(t, errors.Is(client.Ping(context.Background()), repository.ErrUnavailable))
	assert.NoError(t, client.Close(context.Background()))

	sc := client.SessionConfig(neo4j.AccessModeRead)
	assert.Equal(t, "neo4j", sc.DatabaseName)
	assert.Equal(t, neo4j.AccessModeRead, sc.AccessMode)

	store := NewNeo4JGraphStore(client, logger.NewNop())
	assert.True(t, errors.Is(store.Ping(context.Background()), repository.ErrUnavailable))
}
