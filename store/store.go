package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrTurnConflict means another writer already committed a turn at the
	// same (match, turn_number). Callers treat it as a lost race, not a
	// failure.
	ErrTurnConflict = errors.New("turn already taken")
	// ErrLeaseHeld means another worker holds a fresh lease on the match.
	ErrLeaseHeld = errors.New("match lease already held")
)

type Store interface {
	CreateUser(username, passwordHash string) (int64, error)
	GetUserByUsername(username string) (*User, error)
	GetUserByID(userID int64) (*User, error)

	CreateAgent(ownerID int64, agentname, url string) (int64, error)
	GetAgent(ownerUsername, agentname string) (*Agent, error)

	CreateMatch(match *Match, players []*MatchPlayer, genesis *MatchTurn) error
	GetMatch(matchID string) (*Match, error)
	GetMatchPlayers(matchID string) ([]*MatchPlayer, error)
	GetCurrentTurn(matchID string) (*MatchTurn, error)
	AppendTurn(turn *MatchTurn) error
	AppendAgentTurn(turn *MatchTurn, leaseToken string, agentSeat int, agentData []byte) error

	AcquireAgentLease(matchID, token string, ttl time.Duration) error
	ReleaseAgentLease(matchID, token string) error
	GetAgentData(matchID string, seat int) ([]byte, error)

	ListMatchesAwaitingAgent(staleBefore time.Time, limit int) ([]string, error)

	Close() error
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    string
}

type Agent struct {
	ID        int64
	OwnerID   int64
	Agentname string
	URL       string
	CreatedAt string
}

type Match struct {
	ID         string
	Game       string
	CreatedBy  int64
	TurnNumber int64
	CreatedAt  string
}

type MatchPlayer struct {
	MatchID  string
	Seat     int
	UserID   int64
	Username string
	// Agent fields are set only for agent seats.
	AgentID   *int64
	Agentname string
	AgentURL  string
}

type MatchTurn struct {
	MatchID    string
	TurnNumber int64
	Status     []byte // serialized game.Status
	PlayerSeat *int   // nil only for the genesis row
	Action     []byte // nil for genesis and errored turns
	State      []byte // serialized game state
	CreatedAt  string
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateUser(username, passwordHash string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByID(userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) CreateAgent(ownerID int64, agentname, url string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO agents (owner_id, agentname, url) VALUES (?, ?, ?)",
		ownerID, agentname, url,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create agent: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetAgent(ownerUsername, agentname string) (*Agent, error) {
	agent := &Agent{}
	err := s.db.QueryRow(`
		SELECT a.id, a.owner_id, a.agentname, a.url, a.created_at
		FROM agents a
		JOIN users u ON a.owner_id = u.id
		WHERE u.username = ? AND a.agentname = ?
	`, ownerUsername, agentname).Scan(&agent.ID, &agent.OwnerID, &agent.Agentname, &agent.URL, &agent.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return agent, nil
}

// CreateMatch persists the match, its seat assignments and the genesis turn
// in one transaction.
func (s *SQLiteStore) CreateMatch(match *Match, players []*MatchPlayer, genesis *MatchTurn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO matches (id, game, created_by, turn_number) VALUES (?, ?, ?, 0)",
		match.ID, match.Game, match.CreatedBy,
	); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	for _, p := range players {
		if _, err := tx.Exec(
			"INSERT INTO match_players (match_id, seat, user_id, agent_id) VALUES (?, ?, ?, ?)",
			match.ID, p.Seat, p.UserID, p.AgentID,
		); err != nil {
			return fmt.Errorf("failed to seat player %d: %w", p.Seat, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT INTO match_turns (match_id, turn_number, status, player_seat, action, state) VALUES (?, 0, ?, NULL, NULL, ?)",
		match.ID, string(genesis.Status), string(genesis.State),
	); err != nil {
		return fmt.Errorf("failed to write genesis turn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetMatch(matchID string) (*Match, error) {
	match := &Match{}
	err := s.db.QueryRow(
		"SELECT id, game, created_by, turn_number, created_at FROM matches WHERE id = ?",
		matchID,
	).Scan(&match.ID, &match.Game, &match.CreatedBy, &match.TurnNumber, &match.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return match, nil
}

func (s *SQLiteStore) GetMatchPlayers(matchID string) ([]*MatchPlayer, error) {
	rows, err := s.db.Query(`
		SELECT mp.match_id, mp.seat, mp.user_id, u.username, mp.agent_id,
		       COALESCE(a.agentname, ''), COALESCE(a.url, '')
		FROM match_players mp
		JOIN users u ON mp.user_id = u.id
		LEFT JOIN agents a ON mp.agent_id = a.id
		WHERE mp.match_id = ?
		ORDER BY mp.seat
	`, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match players: %w", err)
	}
	defer rows.Close()

	var players []*MatchPlayer
	for rows.Next() {
		p := &MatchPlayer{}
		if err := rows.Scan(&p.MatchID, &p.Seat, &p.UserID, &p.Username, &p.AgentID, &p.Agentname, &p.AgentURL); err != nil {
			return nil, fmt.Errorf("failed to scan match player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// GetCurrentTurn returns the row with the highest turn number, which always
// carries the match's current state and status.
func (s *SQLiteStore) GetCurrentTurn(matchID string) (*MatchTurn, error) {
	turn := &MatchTurn{}
	var status, state string
	var action sql.NullString
	err := s.db.QueryRow(`
		SELECT match_id, turn_number, status, player_seat, action, state, created_at
		FROM match_turns
		WHERE match_id = ?
		ORDER BY turn_number DESC
		LIMIT 1
	`, matchID).Scan(&turn.MatchID, &turn.TurnNumber, &status, &turn.PlayerSeat, &action, &state, &turn.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current turn: %w", err)
	}
	turn.Status = []byte(status)
	turn.State = []byte(state)
	if action.Valid {
		turn.Action = []byte(action.String)
	}
	return turn, nil
}

// AppendTurn writes a turn and bumps the match's turn counter atomically.
// Returns ErrTurnConflict if a concurrent writer got there first.
func (s *SQLiteStore) AppendTurn(turn *MatchTurn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTurn(tx, turn); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AppendAgentTurn writes an agent's turn, releases the lease and stores the
// agent's opaque blob, all in one transaction. The lease is only deleted if
// the token still matches: a stolen lease must not release its thief's.
func (s *SQLiteStore) AppendAgentTurn(turn *MatchTurn, leaseToken string, agentSeat int, agentData []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTurn(tx, turn); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"DELETE FROM agent_leases WHERE match_id = ? AND token = ?",
		turn.MatchID, leaseToken,
	); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}

	if agentData != nil {
		if _, err := tx.Exec(
			"INSERT INTO agent_data (match_id, seat, data) VALUES (?, ?, ?) ON CONFLICT (match_id, seat) DO UPDATE SET data = excluded.data",
			turn.MatchID, agentSeat, string(agentData),
		); err != nil {
			return fmt.Errorf("failed to store agent data: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertTurn(tx *sql.Tx, turn *MatchTurn) error {
	var action any
	if turn.Action != nil {
		action = string(turn.Action)
	}
	_, err := tx.Exec(
		"INSERT INTO match_turns (match_id, turn_number, status, player_seat, action, state) VALUES (?, ?, ?, ?, ?, ?)",
		turn.MatchID, turn.TurnNumber, string(turn.Status), turn.PlayerSeat, action, string(turn.State),
	)
	if isUniqueViolation(err) {
		return ErrTurnConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	if _, err := tx.Exec(
		"UPDATE matches SET turn_number = ? WHERE id = ? AND turn_number < ?",
		turn.TurnNumber, turn.MatchID, turn.TurnNumber,
	); err != nil {
		return fmt.Errorf("failed to bump match turn number: %w", err)
	}
	return nil
}

// AcquireAgentLease claims exclusive agent processing of a match. A lease
// older than ttl is treated as abandoned by a crashed worker and taken over.
func (s *SQLiteStore) AcquireAgentLease(matchID, token string, ttl time.Duration) error {
	now := time.Now().Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingToken string
	var acquiredAt int64
	err = tx.QueryRow(
		"SELECT token, acquired_at FROM agent_leases WHERE match_id = ?",
		matchID,
	).Scan(&existingToken, &acquiredAt)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.Exec(
			"INSERT INTO agent_leases (match_id, token, acquired_at) VALUES (?, ?, ?)",
			matchID, token, now,
		)
		if isUniqueViolation(err) {
			return ErrLeaseHeld
		}
		if err != nil {
			return fmt.Errorf("failed to insert lease: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to read lease: %w", err)
	case now-acquiredAt < int64(ttl.Seconds()):
		return ErrLeaseHeld
	default:
		// Stale lease: take it over, but only from the holder we observed.
		res, err := tx.Exec(
			"UPDATE agent_leases SET token = ?, acquired_at = ? WHERE match_id = ? AND token = ?",
			token, now, matchID, existingToken,
		)
		if err != nil {
			return fmt.Errorf("failed to take over stale lease: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrLeaseHeld
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReleaseAgentLease drops the lease without writing a turn, for bail-out
// paths where nothing was mutated.
func (s *SQLiteStore) ReleaseAgentLease(matchID, token string) error {
	if _, err := s.db.Exec(
		"DELETE FROM agent_leases WHERE match_id = ? AND token = ?",
		matchID, token,
	); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAgentData(matchID string, seat int) ([]byte, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM agent_data WHERE match_id = ? AND seat = ?",
		matchID, seat,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent data: %w", err)
	}
	return []byte(data), nil
}

// ListMatchesAwaitingAgent finds in-progress matches whose active seat is an
// agent and that no worker is processing: either no lease exists or the lease
// was acquired before staleBefore. These are the matches that stall if a
// queued task was ever dropped or lost to a restart.
func (s *SQLiteStore) ListMatchesAwaitingAgent(staleBefore time.Time, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT m.id
		FROM matches m
		JOIN match_turns t ON t.match_id = m.id AND t.turn_number = m.turn_number
		JOIN match_players p ON p.match_id = m.id AND p.seat = json_extract(t.status, '$.activePlayer')
		LEFT JOIN agent_leases l ON l.match_id = m.id
		WHERE json_extract(t.status, '$.state') = 'in_progress'
		  AND p.agent_id IS NOT NULL
		  AND (l.match_id IS NULL OR l.acquired_at < ?)
		LIMIT ?
	`, staleBefore.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches awaiting an agent: %w", err)
	}
	defer rows.Close()

	var matchIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		matchIDs = append(matchIDs, id)
	}
	return matchIDs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
