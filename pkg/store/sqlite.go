package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	lineage "github.com/coinlineage/lineage/pkg"

	"github.com/mattn/go-sqlite3"
)

// Amounts are stored as 8-byte big-endian blobs (SQLite integers are
// signed 64-bit). Removals keep the order in which coins were marked
// spent (spent_seq); additions keep insertion order (rowid).
const SETUP_SQL string = `
CREATE TABLE IF NOT EXISTS block_record (
	height INTEGER NOT NULL PRIMARY KEY,
	header_hash BLOB NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS coin_record (
	coin_id BLOB NOT NULL PRIMARY KEY,
	parent_coin_info BLOB NOT NULL,
	puzzle_hash BLOB NOT NULL,
	amount BLOB NOT NULL,
	confirmed_index INTEGER NOT NULL,
	spent_index INTEGER NOT NULL,
	spent_seq INTEGER NOT NULL,
	coinbase BOOLEAN NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS coin_confirmed_i ON coin_record (confirmed_index);
CREATE INDEX IF NOT EXISTS coin_spent_i ON coin_record (spent_index, spent_seq);

CREATE TABLE IF NOT EXISTS coin_spend (
	coin_id BLOB NOT NULL PRIMARY KEY,
	height INTEGER NOT NULL,
	puzzle_reveal BLOB NOT NULL,
	solution BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS spend_condition (
	coin_id BLOB NOT NULL,
	seq INTEGER NOT NULL,
	opcode INTEGER NOT NULL,
	args TEXT NOT NULL,
	PRIMARY KEY (coin_id, seq)
);
`

// interface guards ensure SQLite implements the collaborator interfaces
var _ lineage.Ledger = SQLite{}
var _ lineage.SpendEvaluator = SQLite{}

// SQLite is a ledger snapshot: coin records, blocks, spends and the
// conditions each spend produced, as exported from a node.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a lineage.Ledger and lineage.SpendEvaluator backed by
// the snapshot in fileName (":memory:" for tests).
func NewSQLite(fileName string) (SQLite, error) {
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return SQLite{}, dbErr(err, "opening database")
	}
	if fileName == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	// init tables / indexes
	_, err = db.Exec(SETUP_SQL)
	if err != nil {
		db.Close()
		return SQLite{}, dbErr(err, "creating database schema")
	}
	return SQLite{db}, nil
}

// OpenSQLite opens an existing snapshot read-only. Unlike NewSQLite it
// never creates the file or its tables.
func OpenSQLite(fileName string) (SQLite, error) {
	info, err := os.Stat(fileName)
	if err != nil {
		return SQLite{}, lineage.NewErr(lineage.NotAvailable, "snapshot %s: %v", fileName, err)
	}
	if info.IsDir() {
		return SQLite{}, lineage.NewErr(lineage.NotAvailable, "snapshot %s is a directory", fileName)
	}
	db, err := sql.Open("sqlite3", "file:"+fileName+"?mode=ro")
	if err != nil {
		return SQLite{}, dbErr(err, "opening database")
	}
	var tables int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('block_record', 'coin_record', 'coin_spend', 'spend_condition')").Scan(&tables)
	if err != nil {
		db.Close()
		return SQLite{}, dbErr(err, "reading schema of "+fileName)
	}
	if tables != 4 {
		db.Close()
		return SQLite{}, lineage.NewErr(lineage.NotAvailable, "snapshot %s: not a lineage snapshot (missing tables)", fileName)
	}
	return SQLite{db}, nil
}

// Defer this until shutdown
func (s SQLite) Close() {
	s.db.Close()
}

func amountToBlob(amount uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], amount)
	return b[:]
}

func blobToAmount(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("amount blob is %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const coinColumns = "parent_coin_info, puzzle_hash, amount, confirmed_index, spent_index, coinbase, timestamp"

func scanCoinRecord(row rowScanner) (rec lineage.CoinRecord, err error) {
	var parent, puzzle, amount []byte
	err = row.Scan(&parent, &puzzle, &amount, &rec.ConfirmedBlockIndex, &rec.SpentBlockIndex, &rec.Coinbase, &rec.Timestamp)
	if err != nil {
		return
	}
	if rec.Coin.ParentCoinInfo, err = lineage.Bytes32FromBytes(parent); err != nil {
		return
	}
	if rec.Coin.PuzzleHash, err = lineage.Bytes32FromBytes(puzzle); err != nil {
		return
	}
	rec.Coin.Amount, err = blobToAmount(amount)
	return
}

func (s SQLite) GetCoinRecord(ctx context.Context, id lineage.CoinID) (lineage.CoinRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+coinColumns+" FROM coin_record WHERE coin_id = ?", id.Bytes())
	rec, err := scanCoinRecord(row)
	if err == sql.ErrNoRows {
		return lineage.CoinRecord{}, lineage.NewErr(lineage.NotFound, "coin record not found: %s", id)
	}
	if err != nil {
		return lineage.CoinRecord{}, dbErr(err, "GetCoinRecord: row.Scan")
	}
	return rec, nil
}

func (s SQLite) GetBlockRecord(ctx context.Context, height uint32) (lineage.BlockRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT header_hash FROM block_record WHERE height = ?", height)
	var hash []byte
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return lineage.BlockRecord{}, lineage.NewErr(lineage.NotFound, "block height not found: %d", height)
	}
	if err != nil {
		return lineage.BlockRecord{}, dbErr(err, "GetBlockRecord: row.Scan")
	}
	header, err := lineage.Bytes32FromBytes(hash)
	if err != nil {
		return lineage.BlockRecord{}, dbErr(err, "GetBlockRecord: header_hash")
	}
	return lineage.BlockRecord{HeaderHash: header, Height: height}, nil
}

func (s SQLite) GetAdditionsAndRemovals(ctx context.Context, headerHash lineage.Bytes32) (additions []lineage.CoinRecord, removals []lineage.CoinRecord, err error) {
	var height uint32
	err = s.db.QueryRowContext(ctx, "SELECT height FROM block_record WHERE header_hash = ?", headerHash.Bytes()).Scan(&height)
	if err == sql.ErrNoRows {
		return nil, nil, lineage.NewErr(lineage.NotFound, "block not found: %s", headerHash)
	}
	if err != nil {
		return nil, nil, dbErr(err, "GetAdditionsAndRemovals: block height")
	}
	additions, err = s.queryCoins(ctx, "SELECT "+coinColumns+" FROM coin_record WHERE confirmed_index = ? ORDER BY rowid", height)
	if err != nil {
		return nil, nil, err
	}
	removals, err = s.queryCoins(ctx, "SELECT "+coinColumns+" FROM coin_record WHERE spent_index = ? ORDER BY spent_seq", height)
	if err != nil {
		return nil, nil, err
	}
	return additions, removals, nil
}

func (s SQLite) queryCoins(ctx context.Context, query string, height uint32) (result []lineage.CoinRecord, err error) {
	rows, err := s.db.QueryContext(ctx, query, height)
	if err != nil {
		return nil, dbErr(err, "querying coin records")
	}
	defer rows.Close()
	for rows.Next() {
		rec, err := scanCoinRecord(rows)
		if err != nil {
			return nil, dbErr(err, "scanning coin record row")
		}
		result = append(result, rec)
	}
	if err = rows.Err(); err != nil { // docs say this check is required!
		return nil, dbErr(err, "querying coin records")
	}
	return result, nil
}

func (s SQLite) GetPuzzleAndSolution(ctx context.Context, id lineage.CoinID, height uint32) (lineage.CoinSpend, error) {
	rec, err := s.GetCoinRecord(ctx, id)
	if err != nil {
		return lineage.CoinSpend{}, err
	}
	spend := lineage.CoinSpend{Coin: rec.Coin, Height: height}
	row := s.db.QueryRowContext(ctx, "SELECT puzzle_reveal, solution FROM coin_spend WHERE coin_id = ? AND height = ?", id.Bytes(), height)
	err = row.Scan((*[]byte)(&spend.PuzzleReveal), (*[]byte)(&spend.Solution))
	if err == sql.ErrNoRows {
		return lineage.CoinSpend{}, lineage.NewErr(lineage.NotFound, "no spend of %s at height %d", id, height)
	}
	if err != nil {
		return lineage.CoinSpend{}, dbErr(err, "GetPuzzleAndSolution: row.Scan")
	}
	return spend, nil
}

// Evaluate returns the conditions recorded for the spend when the
// snapshot was taken. The spend must match the recorded one exactly.
// costLimit is not applied: the conditions were recorded from a node that
// had already run the spend within the block cost limit.
func (s SQLite) Evaluate(ctx context.Context, spend lineage.CoinSpend, costLimit uint64) ([]lineage.Condition, error) {
	id := spend.Coin.ID()
	recorded, err := s.GetPuzzleAndSolution(ctx, id, spend.Height)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(recorded.PuzzleReveal, spend.PuzzleReveal) || !bytes.Equal(recorded.Solution, spend.Solution) {
		return nil, fmt.Errorf("spend of %s does not match the recorded spend", id)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT opcode, args FROM spend_condition WHERE coin_id = ? ORDER BY seq", id.Bytes())
	if err != nil {
		return nil, dbErr(err, "Evaluate: querying conditions")
	}
	defer rows.Close()
	conds := []lineage.Condition{}
	for rows.Next() {
		var opcode uint8
		var args_json string
		if err := rows.Scan(&opcode, &args_json); err != nil {
			return nil, dbErr(err, "Evaluate: scanning condition row")
		}
		c := lineage.Condition{Opcode: lineage.Opcode(opcode)}
		if err := json.Unmarshal([]byte(args_json), &c.Args); err != nil {
			return nil, dbErr(err, "Evaluate: json.Unmarshal")
		}
		if c.Opcode == lineage.CreateCoin && len(c.Args) > 2 {
			c.Args = c.Args[:2] // drop the memo
		}
		conds = append(conds, c)
	}
	if err = rows.Err(); err != nil {
		return nil, dbErr(err, "Evaluate: querying conditions")
	}
	return conds, nil
}

// PutBlock records a block header.
func (s SQLite) PutBlock(block lineage.BlockRecord) error {
	_, err := s.db.Exec("INSERT INTO block_record(height, header_hash) VALUES(?, ?) ON CONFLICT(height) DO UPDATE SET header_hash = excluded.header_hash",
		block.Height, block.HeaderHash.Bytes())
	if err != nil {
		return dbErr(err, "PutBlock")
	}
	return nil
}

// PutCoinRecord inserts or updates a coin record. A coin that becomes
// spent is appended to the removals of its spent block.
func (s SQLite) PutCoinRecord(rec lineage.CoinRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr(err, "PutCoinRecord: begin")
	}
	defer tx.Rollback()

	id := rec.ID()
	seq := 0
	if rec.Spent() {
		var prevIndex uint32
		var prevSeq int
		err = tx.QueryRow("SELECT spent_index, spent_seq FROM coin_record WHERE coin_id = ?", id.Bytes()).Scan(&prevIndex, &prevSeq)
		if err != nil && err != sql.ErrNoRows {
			return dbErr(err, "PutCoinRecord: previous spend")
		}
		if err == nil && prevIndex == rec.SpentBlockIndex {
			seq = prevSeq
		} else {
			err = tx.QueryRow("SELECT COALESCE(MAX(spent_seq), 0) + 1 FROM coin_record").Scan(&seq)
			if err != nil {
				return dbErr(err, "PutCoinRecord: next spent_seq")
			}
		}
	}
	_, err = tx.Exec(`INSERT INTO coin_record(coin_id, `+coinColumns+`, spent_seq) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(coin_id) DO UPDATE SET confirmed_index = excluded.confirmed_index, spent_index = excluded.spent_index,
		spent_seq = excluded.spent_seq, coinbase = excluded.coinbase, timestamp = excluded.timestamp`,
		id.Bytes(), rec.Coin.ParentCoinInfo.Bytes(), rec.Coin.PuzzleHash.Bytes(), amountToBlob(rec.Coin.Amount),
		rec.ConfirmedBlockIndex, rec.SpentBlockIndex, rec.Coinbase, rec.Timestamp, seq)
	if err != nil {
		return dbErr(err, "PutCoinRecord: upsert")
	}
	if err = tx.Commit(); err != nil {
		return dbErr(err, "PutCoinRecord: commit")
	}
	return nil
}

// PutSpend records a coin spend and the conditions it produced,
// replacing any previous record for the coin.
func (s SQLite) PutSpend(spend lineage.CoinSpend, conds []lineage.Condition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return dbErr(err, "PutSpend: begin")
	}
	defer tx.Rollback()

	id := spend.Coin.ID().Bytes()
	_, err = tx.Exec("INSERT INTO coin_spend(coin_id, height, puzzle_reveal, solution) VALUES(?, ?, ?, ?) ON CONFLICT(coin_id) DO UPDATE SET height = excluded.height, puzzle_reveal = excluded.puzzle_reveal, solution = excluded.solution",
		id, spend.Height, []byte(spend.PuzzleReveal), []byte(spend.Solution))
	if err != nil {
		return dbErr(err, "PutSpend: coin_spend")
	}
	if _, err = tx.Exec("DELETE FROM spend_condition WHERE coin_id = ?", id); err != nil {
		return dbErr(err, "PutSpend: clearing conditions")
	}
	stmt, err := tx.Prepare("INSERT INTO spend_condition(coin_id, seq, opcode, args) VALUES(?, ?, ?, ?)")
	if err != nil {
		return dbErr(err, "PutSpend: prepare")
	}
	defer stmt.Close()
	for i, c := range conds {
		args := c.Args
		if args == nil {
			args = []lineage.HexBytes{}
		}
		args_json, err := json.Marshal(args)
		if err != nil {
			return dbErr(err, "PutSpend: json.Marshal")
		}
		if _, err = stmt.Exec(id, i, uint8(c.Opcode), string(args_json)); err != nil {
			return dbErr(err, "PutSpend: spend_condition")
		}
	}
	if err = tx.Commit(); err != nil {
		return dbErr(err, "PutSpend: commit")
	}
	return nil
}

func dbErr(err error, where string) error {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		if sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked {
			return lineage.WrapErr(lineage.NotAvailable, err, "SQLite busy: %s", where)
		}
		if sqErr.Code == sqlite3.ErrCorrupt || sqErr.Code == sqlite3.ErrNotADB {
			return lineage.WrapErr(lineage.LedgerInconsistency, err, "SQLite snapshot unreadable: %s", where)
		}
	}
	return lineage.WrapErr(lineage.NotAvailable, err, "SQLite error: %s", where)
}
