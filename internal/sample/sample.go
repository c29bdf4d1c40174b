// Package sample bootstraps a set of SQLite demo shards so the analyzer can
// be exercised without external servers. The seeded data deliberately includes
// an orphaned order, an orphaned order item, a duplicate-prone schema, and one
// plaintext password so every analyzer has something to find.
package sample

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tneupaney/dbAnalyzer/internal/db"
)

// DefaultShardCount is the number of demo shards created by default.
const DefaultShardCount = 2

var sampleYears = []int{2023, 2024}

var shardCustomers = map[int][]int{
	1: {1, 3, 5},
	2: {2, 4, 6},
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
	customer_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT UNIQUE,
	address TEXT
);
CREATE TABLE IF NOT EXISTS products (
	product_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	price REAL NOT NULL,
	category TEXT
);
CREATE TABLE IF NOT EXISTS users (
	user_id INTEGER PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	email TEXT,
	last_login TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS audit_log (
	log_id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	entity_type TEXT,
	entity_id INTEGER,
	timestamp TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS orders (
	order_id INTEGER PRIMARY KEY,
	customer_id INTEGER,
	order_date TEXT NOT NULL,
	amount REAL NOT NULL,
	FOREIGN KEY (customer_id) REFERENCES customers(customer_id)
);
CREATE TRIGGER IF NOT EXISTS after_insert_orders_trigger
AFTER INSERT ON orders
FOR EACH ROW
BEGIN
	INSERT INTO audit_log (action, entity_type, entity_id)
	VALUES ('new_order_inserted', 'order', NEW.order_id);
END;
CREATE TABLE IF NOT EXISTS order_items (
	item_id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id INTEGER,
	product_id INTEGER,
	quantity INTEGER NOT NULL,
	item_amount REAL NOT NULL,
	FOREIGN KEY (order_id) REFERENCES orders(order_id),
	FOREIGN KEY (product_id) REFERENCES products(product_id)
);
`

// Setup creates numShards SQLite demo shards under dir, removing any previous
// shard files first, and returns descriptors for them in shard order.
func Setup(ctx context.Context, dir string, numShards int) ([]db.Descriptor, error) {
	if numShards <= 0 {
		numShards = DefaultShardCount
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sample directory: %w", err)
	}

	descs := make([]db.Descriptor, 0, numShards)
	for shardID := 1; shardID <= numShards; shardID++ {
		path := filepath.Join(dir, fmt.Sprintf("sample_shard_%d.db", shardID))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove previous shard file %s: %w", path, err)
		}
		if err := setupShard(ctx, path, shardID); err != nil {
			return nil, fmt.Errorf("failed to set up shard %d: %w", shardID, err)
		}
		descs = append(descs, db.Descriptor{Path: path})
	}
	return descs, nil
}

func setupShard(ctx context.Context, path string, shardID int) error {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Seed data includes deliberate violations; enforcement stays off for the
	// whole load.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, schemaDDL); err != nil {
		return err
	}
	if err := seedShard(ctx, conn, shardID); err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	return err
}

func seedShard(ctx context.Context, conn *sql.DB, shardID int) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	customers := [][]any{
		{1, "Alice Smith", "alice@example.com", "123 Main St"},
		{2, "Bob Johnson", "bob@example.com", "456 Oak Ave"},
		{3, "Charlie Brown", "charlie@example.com", "789 Pine Ln"},
		{4, "David Lee", "david@example.com", "101 Elm St"},
		{5, "Eve Davis", "eve@example.com", "202 Maple Dr"},
		{6, "Frank White", "frank@example.com", "303 Birch Rd"},
	}
	for _, row := range customers {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO customers (customer_id, name, email, address) VALUES (?, ?, ?, ?)", row...); err != nil {
			return err
		}
	}

	products := [][]any{
		{101, "Laptop Pro", 1500.00, "Electronics"},
		{102, "Wireless Mouse", 30.00, "Accessories"},
		{103, "Mechanical Keyboard", 120.00, "Accessories"},
		{104, "4K Monitor", 450.00, "Electronics"},
		{105, "USB-C Hub", 50.00, "Peripherals"},
	}
	for _, row := range products {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO products (product_id, name, price, category) VALUES (?, ?, ?, ?)", row...); err != nil {
			return err
		}
	}

	// One properly hashed password, one weak-but-hashed, one plaintext for the
	// security scanner to flag.
	users := [][]any{
		{1, "admin_user", sha256Hex("supersecurepassword!"), "admin@example.com"},
		{2, "test_user", sha256Hex("weakpass"), "test@example.com"},
		{3, "dev_user", "plaintext_password_123", "dev@example.com"},
	}
	for _, row := range users {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO users (user_id, username, password_hash, email) VALUES (?, ?, ?, ?)", row...); err != nil {
			return err
		}
	}

	for _, year := range sampleYears {
		for month := 1; month <= 12; month++ {
			for _, day := range []int{1, 15, 28} {
				for _, customerID := range shardCustomers[(shardID-1)%2+1] {
					orderDate := fmt.Sprintf("%d-%02d-%02d", year, month, day)
					orderID := sampleOrderID(year, month, day, customerID, shardID)
					amount := 100.0 + float64(customerID*10) + float64(year-2023)*50 + float64(month*2)
					if _, err := tx.ExecContext(ctx,
						"INSERT OR REPLACE INTO orders (order_id, customer_id, order_date, amount) VALUES (?, ?, ?, ?)",
						orderID, customerID, orderDate, amount); err != nil {
						return err
					}
				}
			}
		}
	}

	if shardID == 1 {
		// Orphaned order and order item for the integrity checker.
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO orders (order_id, customer_id, order_date, amount) VALUES (99999999, 999, '2024-01-01', 100.0)"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, item_amount) VALUES (99999998, 101, 1, 100.0)"); err != nil {
			return err
		}
	}

	localCustomers := shardCustomers[(shardID-1)%2+1]
	first := sampleOrderID(2023, 1, 1, localCustomers[0], shardID)
	second := sampleOrderID(2023, 1, 15, localCustomers[1], shardID)
	items := [][]any{
		{first, 101, 1, 1200.00},
		{first, 102, 2, 60.00},
		{second, 103, 1, 120.00},
	}
	for _, row := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, item_amount) VALUES (?, ?, ?, ?)", row...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// sampleOrderID packs the order coordinates into a stable, collision-free key.
func sampleOrderID(year, month, day, customerID, shardID int) int {
	return ((year-2023)*12+month)*1_000_000 + day*10_000 + customerID*100 + shardID
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
