package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/agent/domain"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const createOutcomesTable = `CREATE TABLE IF NOT EXISTS feedback_outcomes (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	provider TEXT,
	model TEXT,
	input_text TEXT,
	reply_text TEXT,
	error TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
)`

const insertOutcome = `INSERT INTO feedback_outcomes
	(id, tenant_id, session_id, conversation_id, outcome, provider, model, input_text, reply_text, error,
	 input_tokens, output_tokens, cost_usd, latency_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

// SQLSink guarda los resultados en una tabla propia, fuera de la base del CRM.
type SQLSink struct {
	db     *sql.DB
	driver string
	insert string
}

// OpenSQLSink abre la base con database/sql y crea la tabla si falta.
func OpenSQLSink(driver, dsn string) (*SQLSink, error) {
	driver = normalizeDriver(driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("feedback: open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	sink, err := NewSQLSink(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func NewSQLSink(db *sql.DB, driver string) (*SQLSink, error) {
	driver = normalizeDriver(driver)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, createOutcomesTable); err != nil {
		return nil, fmt.Errorf("feedback: create table: %w", err)
	}
	insert := insertOutcome
	if driver == "postgres" {
		insert = rebindDollar(insertOutcome)
	}
	return &SQLSink{db: db, driver: driver, insert: insert}, nil
}

func (s *SQLSink) Record(ctx context.Context, l *domain.DispatchLog) error {
	id := l.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.insert,
		id, l.TenantID, l.SessionID, l.ConversationID, string(l.Outcome), string(l.Provider), l.Model,
		l.InputText, l.ReplyText, l.Error, l.InputTokens, l.OutputTokens, l.CostUSD, l.LatencyMs, created)
	if err != nil {
		return fmt.Errorf("feedback: insert outcome: %w", err)
	}
	return nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

func normalizeDriver(driver string) string {
	switch driver {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql":
		return "postgres"
	}
	return driver
}

// rebindDollar convierte los ? en $1, $2... para lib/pq.
func rebindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
