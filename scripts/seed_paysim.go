//go:build ignore

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"aml-graph-analyzer/internal/domain/entity"
	"aml-graph-analyzer/internal/infrastructure/config"
	"aml-graph-analyzer/internal/infrastructure/database"
	"aml-graph-analyzer/internal/infrastructure/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaySim steps are simulated hours
const defaultStepSeconds = 3600

func main() {
	path := flag.String("file", "", "PaySim CSV file")
	batchSize := flag.Int("batch", 1000, "rows per write transaction")
	stepSeconds := flag.Int64("step-seconds", defaultStepSeconds, "seconds per PaySim step")
	maxRows := flag.Int("max-rows", 0, "stop after this many rows (0 = all)")
	flag.Parse()

	// Setup logger
	log, err := logger.NewLogger("info")
	if err != nil {
		panic(err)
	}
	log = log.WithComponent("seed-paysim-script")

	if *path == "" {
		log.Fatal("Missing -file flag")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Create Neo4j client, Connect also ensures constraints and indexes
	neo4jClient := database.NewNeo4JClient(&cfg.Neo4J, log)

	ctx := context.Background()
	if err := neo4jClient.Connect(ctx); err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer neo4jClient.Close(ctx)

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal("Failed to open CSV file", zap.Error(err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		log.Fatal("Failed to read CSV header", zap.Error(err))
	}
	columns, err := columnIndex(header)
	if err != nil {
		log.Fatal("Unsupported CSV layout", zap.Error(err))
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 2*time.Hour)
	defer cancel()

	session := neo4jClient.GetDriver().NewSession(ctxWithTimeout, neo4jClient.SessionConfig(neo4j.AccessModeWrite))
	defer session.Close(ctxWithTimeout)

	batch := make([]entity.Transaction, 0, *batchSize)
	total, skipped := 0, 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatal("Failed to read CSV row", zap.Int("row", total+skipped+1), zap.Error(err))
		}

		tx, err := parseRow(row, columns, *stepSeconds)
		if err != nil {
			log.Warn("Skipping malformed row", zap.Int("row", total+skipped+1), zap.Error(err))
			skipped++
			continue
		}
		batch = append(batch, tx)
		total++

		if len(batch) >= *batchSize {
			if err := writeBatch(ctxWithTimeout, session, batch); err != nil {
				log.Fatal("Failed to write batch", zap.Error(err))
			}
			log.Info("Wrote batch", zap.Int("rows", total))
			batch = batch[:0]
		}
		if *maxRows > 0 && total >= *maxRows {
			break
		}
	}

	if len(batch) > 0 {
		if err := writeBatch(ctxWithTimeout, session, batch); err != nil {
			log.Fatal("Failed to write batch", zap.Error(err))
		}
	}

	log.Info("Seeding complete", zap.Int("transactions", total), zap.Int("skipped", skipped))
}

var requiredColumns = []string{"step", "type", "amount", "nameOrig", "nameDest"}

func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int, stepSeconds int64) (entity.Transaction, error) {
	step, err := strconv.ParseInt(row[columns["step"]], 10, 64)
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("invalid step: %w", err)
	}
	amount, err := decimal.NewFromString(row[columns["amount"]])
	if err != nil {
		return entity.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}
	if amount.IsNegative() {
		return entity.Transaction{}, errors.New("negative amount")
	}

	tx := entity.Transaction{
		Sender:    row[columns["nameOrig"]],
		Receiver:  row[columns["nameDest"]],
		Type:      entity.ParseTransactionType(row[columns["type"]]),
		Amount:    amount,
		Timestamp: step * stepSeconds,
	}
	if idx, ok := columns["isFraud"]; ok {
		tx.IsFraud = row[idx] == "1"
	}
	if tx.Sender == "" || tx.Receiver == "" {
		return entity.Transaction{}, errors.New("missing account id")
	}
	return tx, nil
}

// writeBatch merges both endpoints and creates one relationship per row, grouped by type
// since relationship types cannot be query parameters
func writeBatch(ctx context.Context, session neo4j.SessionWithContext, batch []entity.Transaction) error {
	byType := make(map[entity.TransactionType][]map[string]any)
	for _, tx := range batch {
		amount, _ := tx.Amount.Float64()
		byType[tx.Type] = append(byType[tx.Type], map[string]any{
			"sender":    tx.Sender,
			"receiver":  tx.Receiver,
			"amount":    amount,
			"timestamp": tx.Timestamp,
			"isFraud":   tx.IsFraud,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(mtx neo4j.ManagedTransaction) (any, error) {
		for txType, rows := range byType {
			query := fmt.Sprintf(`
				UNWIND $rows AS row
				MERGE (s:Account {id: row.sender})
				MERGE (r:Account {id: row.receiver})
				CREATE (s)-[:%s {amount: row.amount, timestamp: row.timestamp, isFraud: row.isFraud}]->(r)
			`, txType)
			if _, err := mtx.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
				return nil, fmt.Errorf("failed to write %s rows: %w", txType, err)
			}
		}
		return nil, nil
	})
	return err
}
