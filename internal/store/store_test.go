package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/crossline/internal/domain"
)

func testPosition() domain.Position {
	return domain.Position{
		Symbol:     "BTCUSDT",
		Side:       domain.LongPosition,
		Quantity:   0.5,
		EntryPrice: 10.05,
		Leverage:   5,
		OpenedAt:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Status:     domain.PositionOpen,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	// 비어 있으면 nil
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	pos := testPosition()
	require.NoError(t, s.Save(pos))

	loaded, err = s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, pos.Symbol, loaded.Symbol)
	assert.Equal(t, pos.Side, loaded.Side)
	assert.Equal(t, pos.Quantity, loaded.Quantity)
	assert.Equal(t, pos.EntryPrice, loaded.EntryPrice)
	assert.Equal(t, pos.Leverage, loaded.Leverage)
	assert.Equal(t, pos.OpenedAt.UnixMilli(), loaded.OpenedAt.UnixMilli())
	assert.Equal(t, pos.Status, loaded.Status)
}

func TestStore_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	pos := testPosition()
	require.NoError(t, s.Save(pos))

	pos.Quantity = 0.25
	pos.Status = domain.PositionClosing
	require.NoError(t, s.Save(pos))

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 0.25, loaded.Quantity)
	assert.Equal(t, domain.PositionClosing, loaded.Status)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(testPosition()))
	require.NoError(t, s.Close())

	// 재시작 시나리오: 같은 파일을 다시 열어 복원
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "BTCUSDT", loaded.Symbol)
}

func TestStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(testPosition()))
	require.NoError(t, s.Clear())

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// 비어 있는 상태에서의 Clear도 무해
	require.NoError(t, s.Clear())
}
