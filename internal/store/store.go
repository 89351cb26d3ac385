// Package store는 포지션 상태를 SQLite 파일에 보존합니다.
// 프로세스가 재시작되어도 열린 포지션을 이어서 추적할 수 있게 합니다.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/assist-by/crossline/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS position (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	symbol      TEXT    NOT NULL,
	side        TEXT    NOT NULL,
	quantity    REAL    NOT NULL,
	entry_price REAL    NOT NULL,
	leverage    INTEGER NOT NULL,
	opened_at   INTEGER NOT NULL,
	status      TEXT    NOT NULL
);`

// Store는 봇 인스턴스의 단일 포지션을 저장합니다.
// 포지션은 항상 최대 하나이므로 한 행만 사용합니다.
type Store struct {
	db *sql.DB
}

// Open은 상태 파일을 열고 스키마를 준비합니다
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("상태 파일 열기 실패: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("스키마 생성 실패: %w", err)
	}

	return &Store{db: db}, nil
}

// Save는 포지션 상태를 저장합니다 (기존 상태 덮어쓰기)
func (s *Store) Save(pos domain.Position) error {
	_, err := s.db.Exec(`
		INSERT INTO position (id, symbol, side, quantity, entry_price, leverage, opened_at, status)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			side = excluded.side,
			quantity = excluded.quantity,
			entry_price = excluded.entry_price,
			leverage = excluded.leverage,
			opened_at = excluded.opened_at,
			status = excluded.status`,
		pos.Symbol, string(pos.Side), pos.Quantity, pos.EntryPrice,
		pos.Leverage, pos.OpenedAt.UnixMilli(), string(pos.Status),
	)
	if err != nil {
		return fmt.Errorf("포지션 저장 실패: %w", err)
	}
	return nil
}

// Load는 저장된 포지션을 읽습니다. 저장된 것이 없으면 nil을 반환합니다.
func (s *Store) Load() (*domain.Position, error) {
	row := s.db.QueryRow(`
		SELECT symbol, side, quantity, entry_price, leverage, opened_at, status
		FROM position WHERE id = 1`)

	var (
		pos      domain.Position
		side     string
		status   string
		openedAt int64
	)
	err := row.Scan(&pos.Symbol, &side, &pos.Quantity, &pos.EntryPrice,
		&pos.Leverage, &openedAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("포지션 조회 실패: %w", err)
	}

	pos.Side = domain.PositionSide(side)
	pos.Status = domain.PositionStatus(status)
	pos.OpenedAt = time.Unix(0, openedAt*int64(time.Millisecond))
	return &pos, nil
}

// Clear는 저장된 포지션을 삭제합니다
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM position WHERE id = 1`); err != nil {
		return fmt.Errorf("포지션 삭제 실패: %w", err)
	}
	return nil
}

// Close는 상태 파일을 닫습니다
func (s *Store) Close() error {
	return s.db.Close()
}
