package main

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

type PostgresDB struct {
	db  *sql.DB
	dsn string
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d, dsn: dsn}
	if err := p.Init(); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

func (p *PostgresDB) Init() error {
	// rely on migrations to create tables; just verify connectivity
	return p.db.Ping()
}

func (p *PostgresDB) CreateUser(username, passwordHash, totpSecret string) (*User, error) {
	var (
		id      int64
		created time.Time
	)
	err := p.db.QueryRow(
		`INSERT INTO users(username,password_hash,totp_secret,active,created_at) VALUES($1,$2,$3,TRUE,now()) RETURNING id,created_at`,
		username, passwordHash, totpSecret,
	).Scan(&id, &created)
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, PasswordHash: passwordHash, TOTPSecret: totpSecret, Active: true, CreatedAt: created}, nil
}

func (p *PostgresDB) GetUserByUsername(username string) (*User, error) {
	row := p.db.QueryRow(`SELECT id,username,password_hash,totp_secret,active,last_login,created_at FROM users WHERE username = $1`, username)
	var (
		u         User
		lastLogin sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.TOTPSecret, &u.Active, &lastLogin, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

func (p *PostgresDB) UpdatePassword(userID int64, passwordHash string) error {
	_, err := p.db.Exec(`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	return err
}

func (p *PostgresDB) UpdateLastLogin(userID int64, when time.Time) error {
	_, err := p.db.Exec(`UPDATE users SET last_login = $1 WHERE id = $2`, when, userID)
	return err
}

func (p *PostgresDB) CountUsers() (int, error) {
	var n int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (p *PostgresDB) close() error { return p.db.Close() }
func (p *PostgresDB) ping() bool   { return p.db.Ping() == nil }
