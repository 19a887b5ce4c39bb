package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
)

// Offline audit: recomputes every balance projection from its transaction
// log and reports any divergence. Discrepancies are invariant violations
// and are reported, never silently corrected.

var dbURL string

func init() {
	flag.StringVar(&dbURL, "db", os.Getenv("DB_SOURCE"), "Database connection string")
}

type violation struct {
	Kind      string `json:"kind"`
	EntityID  string `json:"entity_id"`
	Projected int64  `json:"projected"`
	Computed  int64  `json:"computed"`
}

func main() {
	flag.Parse()
	if dbURL == "" {
		log.Fatal("database connection string required (-db or DB_SOURCE)")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	var violations []violation

	// Loyalty: currentPoints must equal the sum of all transaction deltas,
	// pending and completed alike.
	rows, err := conn.Query(ctx, `
		SELECT l.member_id, l.current_points, COALESCE(SUM(t.points), 0)
		FROM loyalty l
		LEFT JOIN loyalty_transactions t ON t.member_id = l.member_id
		GROUP BY l.member_id, l.current_points
		HAVING l.current_points <> COALESCE(SUM(t.points), 0)`)
	if err != nil {
		log.Fatalf("Loyalty audit query failed: %v", err)
	}
	for rows.Next() {
		var v violation
		v.Kind = "loyalty"
		if err := rows.Scan(&v.EntityID, &v.Projected, &v.Computed); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		violations = append(violations, v)
	}
	rows.Close()

	// Supports: currentTokens must equal the sum of token deltas
	// (PromiseFund positive, SpendFund negative; Receive/Revert are zero).
	rows, err = conn.Query(ctx, `
		SELECT sp.id, sp.current_tokens, COALESCE(SUM(t.tokens), 0)
		FROM microcredit_supports sp
		LEFT JOIN microcredit_transactions t ON t.support_id = sp.id
		GROUP BY sp.id, sp.current_tokens
		HAVING sp.current_tokens <> COALESCE(SUM(t.tokens), 0)`)
	if err != nil {
		log.Fatalf("Support audit query failed: %v", err)
	}
	for rows.Next() {
		var v violation
		v.Kind = "support"
		if err := rows.Scan(&v.EntityID, &v.Projected, &v.Computed); err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		violations = append(violations, v)
	}
	rows.Close()

	report := map[string]interface{}{
		"violations": violations,
		"count":      len(violations),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(report)

	if len(violations) > 0 {
		os.Exit(1)
	}
}
