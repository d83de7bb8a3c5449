package main

import (
	"database/sql"
	"errors"
	"sync"
	"time"
)

// DB is the user store behind the authentication flows. Implementations must
// treat usernames as unique; callers pass them already normalized.
type DB interface {
	Init() error
	CreateUser(username, passwordHash, totpSecret string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	UpdatePassword(userID int64, passwordHash string) error
	UpdateLastLogin(userID int64, when time.Time) error
	CountUsers() (int, error)
}

// Memory DB
type MemDB struct {
	mu    sync.RWMutex
	users map[string]*User
	seq   int64
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[string]*User{}, seq: 1}
}

func (m *MemDB) Init() error { return nil }

func (m *MemDB) CreateUser(username, passwordHash, totpSecret string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; ok {
		return nil, errors.New("exists")
	}
	u := &User{
		ID:           m.seq,
		Username:     username,
		PasswordHash: passwordHash,
		TOTPSecret:   totpSecret,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	m.seq++
	m.users[username] = u
	return u, nil
}

func (m *MemDB) GetUserByUsername(username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) UpdatePassword(userID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return errors.New("user not found")
}

func (m *MemDB) UpdateLastLogin(userID int64, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.LastLogin = &when
			return nil
		}
	}
	return errors.New("user not found")
}

func (m *MemDB) CountUsers() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// SQLite DB
type SQLiteDB struct {
	db   *sql.DB
	path string
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteDB{db: d, path: path}
	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		totp_secret TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		last_login TEXT,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);`)
	return err
}

func (s *SQLiteDB) CreateUser(username, passwordHash, totpSecret string) (*User, error) {
	res, err := s.db.Exec(`INSERT INTO users(username,password_hash,totp_secret,active,created_at) VALUES(?,?,?,1,datetime('now'))`,
		username, passwordHash, totpSecret)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &User{ID: id, Username: username, PasswordHash: passwordHash, TOTPSecret: totpSecret, Active: true}, nil
}

func (s *SQLiteDB) GetUserByUsername(username string) (*User, error) {
	row := s.db.QueryRow(`SELECT id,username,password_hash,totp_secret,active,last_login,created_at FROM users WHERE username = ?`, username)
	var (
		u         User
		active    int
		lastLogin sql.NullString
		createdAt sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.TOTPSecret, &active, &lastLogin, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Active = active != 0
	if lastLogin.Valid {
		if t, err := parseSQLiteTime(lastLogin.String); err == nil {
			u.LastLogin = &t
		}
	}
	if createdAt.Valid {
		if t, err := parseSQLiteTime(createdAt.String); err == nil {
			u.CreatedAt = t
		}
	}
	return &u, nil
}

// sqlite's datetime('now') stores "2006-01-02 15:04:05"; RFC3339 values come
// from UpdateLastLogin.
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func (s *SQLiteDB) UpdatePassword(userID int64, passwordHash string) error {
	_, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, userID)
	return err
}

func (s *SQLiteDB) UpdateLastLogin(userID int64, when time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_login = ? WHERE id = ?`, when.UTC().Format(time.RFC3339), userID)
	return err
}

func (s *SQLiteDB) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// lifecycle helpers
func (m *MemDB) close() error { return nil }
func (m *MemDB) ping() bool   { return true }

func (s *SQLiteDB) close() error { return s.db.Close() }
func (s *SQLiteDB) ping() bool   { return s.db.Ping() == nil }
