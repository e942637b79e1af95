package pager

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	pagemanager "github.com/kagedb/kagedb/core/write_engine/page_manager"
	"go.uber.org/zap"
)

func setupPager(t *testing.T) (*Pager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	p, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, path
}

func TestReadPageFreshStoreIsZeroFilled(t *testing.T) {
	p, _ := setupPager(t)

	page, err := p.ReadPage(9999)
	require.NoError(t, err)
	require.Len(t, page, pagemanager.PageSize)
	require.Equal(t, make([]byte, pagemanager.PageSize), page)
}

func TestWritePageDurabilityRoundTrip(t *testing.T) {
	p, path := setupPager(t)

	data := bytes.Repeat([]byte{0x5B}, pagemanager.PageSize)
	copy(data, []byte{1, 2, 3, 4})
	require.NoError(t, p.WritePage(3, data))
	require.NoError(t, p.Close())

	// Reopen to prove the write survived the file handle.
	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	page, err := reopened.ReadPage(3)
	require.NoError(t, err)
	require.Equal(t, data, page)
}

func TestWritePageRejectsWrongSize(t *testing.T) {
	p, _ := setupPager(t)

	err := p.WritePage(0, []byte("too short"))
	require.ErrorIs(t, err, ErrInvalidPageData)

	err = p.WritePage(0, make([]byte, pagemanager.PageSize+1))
	require.ErrorIs(t, err, ErrInvalidPageData)
}

func TestReadPagePartialTailIsZeroPadded(t *testing.T) {
	p, path := setupPager(t)

	data := bytes.Repeat([]byte{0xEE}, pagemanager.PageSize)
	require.NoError(t, p.WritePage(0, data))
	require.NoError(t, p.Close())

	// A file shorter than a full page still reads as a whole page.
	require.NoError(t, os.Truncate(path, 100))
	reopened, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	page, err := reopened.ReadPage(0)
	require.NoError(t, err)
	require.Equal(t, data[:100], page[:100])
	require.Equal(t, make([]byte, pagemanager.PageSize-100), page[100:])
}

func TestOperationsAfterCloseFail(t *testing.T) {
	p, _ := setupPager(t)
	require.NoError(t, p.Close())

	_, err := p.ReadPage(0)
	require.ErrorIs(t, err, ErrClosed)
	err = p.WritePage(0, make([]byte, pagemanager.PageSize))
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, p.Close())
}

func TestWritePageDoesNotDisturbNeighbors(t *testing.T) {
	p, _ := setupPager(t)

	first := bytes.Repeat([]byte{0x11}, pagemanager.PageSize)
	third := bytes.Repeat([]byte{0x33}, pagemanager.PageSize)
	require.NoError(t, p.WritePage(0, first))
	require.NoError(t, p.WritePage(2, third))

	// The page in between was never written and reads as zeroes.
	middle, err := p.ReadPage(1)
	require.NoError(t, err)
	require.Equal(t, make([]byte, pagemanager.PageSize), middle)

	page, err := p.ReadPage(0)
	require.NoError(t, err)
	require.Equal(t, first, page)
	page, err = p.ReadPage(2)
	require.NoError(t, err)
	require.Equal(t, third, page)
}
