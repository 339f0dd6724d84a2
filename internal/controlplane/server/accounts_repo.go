package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Server) insertAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (username,password_enc,plugin,args,rsn,created_at,updated_at)
VALUES (?,?,?,?,?,?,?)
`, a.Username, a.PasswordEnc, a.Plugin, a.Args, a.RSN,
		a.CreatedAt.Format(time.RFC3339Nano), a.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Server) getAccount(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT username,password_enc,plugin,args,rsn,created_at,updated_at
FROM accounts WHERE username=?
`, username)
	var a Account
	var createdAt, updatedAt string
	if err := row.Scan(&a.Username, &a.PasswordEnc, &a.Plugin, &a.Args, &a.RSN, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &a, nil
}

func (s *Server) listAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT username,password_enc,plugin,args,rsn,created_at,updated_at
FROM accounts ORDER BY username
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		var createdAt, updatedAt string
		if err := rows.Scan(&a.Username, &a.PasswordEnc, &a.Plugin, &a.Args, &a.RSN, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Server) updateAccount(ctx context.Context, a Account) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE accounts SET password_enc=?, plugin=?, args=?, rsn=?, updated_at=?
WHERE username=?
`, a.PasswordEnc, a.Plugin, a.Args, a.RSN, time.Now().Format(time.RFC3339Nano), a.Username)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}
