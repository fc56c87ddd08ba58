package database

import (
	"context"
	"fmt"
	"strings"

	"aml-graph-analyzer/internal/domain/repository"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// transactionRelTypes are the relationship types a transaction edge may carry
var transactionRelTypes = []string{"TRANSFER", "CASH_IN", "CASH_OUT", "PAYMENT", "DEBIT"}

// Neo4JClient owns the driver for the account graph
type Neo4JClient struct {
	driver neo4j.DriverWithContext
	config *config.Neo4JConfig
	logger *logger.Logger
}

// NewNeo4JClient creates a new Neo4J client
func NewNeo4JClient(cfg *config.Neo4JConfig, logger *logger.Logger) *Neo4JClient {
	return &Neo4JClient{
		config: cfg,
		logger: logger.WithComponent("neo4j-client"),
	}
}

// Connect opens the driver, verifies connectivity and ensures the account graph schema
func (n *Neo4JClient) Connect(ctx context.Context) error {
	n.logger.Info("Connecting to Neo4J database",
		zap.String("uri", n.config.URI),
		zap.String("database", n.config.Database))

	driver, err := neo4j.NewDriverWithContext(
		n.config.URI,
		neo4j.BasicAuth(n.config.Username, n.config.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = n.config.MaxConnectionPoolSize
			c.ConnectionAcquisitionTimeout = n.config.ConnectionAcquisitionTimeout
			c.SocketConnectTimeout = n.config.ConnectTimeout
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create Neo4J driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return fmt.Errorf("failed to verify Neo4J connectivity: %w", err)
	}
	n.driver = driver

	applied := n.ensureSchema(ctx)
	n.logger.Info("Connected to Neo4J database", zap.Int("schema_statements", applied))
	return nil
}

// Close closes the Neo4J connection
func (n *Neo4JClient) Close(ctx context.Context) error {
	if n.driver == nil {
		return nil
	}
	n.logger.Info("Closing Neo4J connection")
	return n.driver.Close(ctx)
}

// GetDriver returns the Neo4J driver, nil before Connect
func (n *Neo4JClient) GetDriver() neo4j.DriverWithContext {
	return n.driver
}

// SessionConfig returns the session configuration for the configured database
func (n *Neo4JClient) SessionConfig(mode neo4j.AccessMode) neo4j.SessionConfig {
	return neo4j.SessionConfig{
		DatabaseName: n.config.Database,
		AccessMode:   mode,
	}
}

// Ping reports repository.ErrUnavailable when the database cannot be reached
func (n *Neo4JClient) Ping(ctx context.Context) error {
	if n.driver == nil {
		return repository.ErrUnavailable
	}
	if err := n.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return nil
}

// schemaStatements lists the account constraint and the amount and timestamp
// indexes for every transaction relationship type
func schemaStatements() []string {
	statements := []string{
		"CREATE CONSTRAINT account_id IF NOT EXISTS FOR (a:Account) REQUIRE a.id IS UNIQUE",
	}
	for _, relType := range transactionRelTypes {
		name := strings.ToLower(relType)
		for _, prop := range []string{"amount", "timestamp"} {
			statements = append(statements, fmt.Sprintf(
				"CREATE INDEX %s_%s IF NOT EXISTS FOR ()-[r:%s]-() ON (r.%s)", name, prop, relType, prop))
		}
	}
	return statements
}

// ensureSchema applies schema statements one by one; failures are logged and skipped
// so that read-only deployments still start. Returns the number applied.
func (n *Neo4JClient) ensureSchema(ctx context.Context) int {
	session := n.driver.NewSession(ctx, n.SessionConfig(neo4j.AccessModeWrite))
	defer session.Close(ctx)

	applied := 0
	for _, stmt := range schemaStatements() {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, stmt, nil)
		})
		if err != nil {
			n.logger.Warn("Failed to apply schema statement", zap.String("statement", stmt), zap.Error(err))
			continue
		}
		applied++
	}
	return applied
}
