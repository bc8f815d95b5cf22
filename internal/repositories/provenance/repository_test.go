package provenance

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianCLong/summit-sub013/pkg/database"
	"github.com/BrianCLong/summit-sub013/pkg/provenance"
)

type fakeTx struct {
	queries   []string
	args      [][]any
	execErr   error
	commits   int
	rollbacks int
	open      bool
}

func (t *fakeTx) IsOpen() bool { return t.open }

func (t *fakeTx) Commit(context.Context) error {
	t.commits++
	t.open = false
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.open {
		t.rollbacks++
		t.open = false
	}
	return nil
}

func (t *fakeTx) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	t.queries = append(t.queries, query)
	t.args = append(t.args, args)
	if t.execErr != nil {
		return nil, t.execErr
	}
	return nil, nil
}

func (t *fakeTx) GetContext(context.Context, any, string, ...any) error { return nil }

func (t *fakeTx) SelectContext(context.Context, any, string, ...any) error { return nil }

type fakeDB struct {
	tx    *fakeTx
	txErr error
}

func (d *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func (d *fakeDB) GetContext(context.Context, any, string, ...any) error { return nil }

func (d *fakeDB) SelectContext(context.Context, any, string, ...any) error { return nil }

func (d *fakeDB) PingContext(context.Context) error { return nil }

func (d *fakeDB) Close() error { return nil }

func (d *fakeDB) GetTx(ctx context.Context, _ *sql.TxOptions) (context.Context, database.Tx, error) {
	if d.txErr != nil {
		return ctx, nil, d.txErr
	}
	d.tx.open = true
	return ctx, d.tx, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestAppendEntryWritesThroughTransaction(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx}, testLogger())

	entry := provenance.Entry{
		ID:         "entry-1",
		TenantID:   "t1",
		ActionType: provenance.ActionGuardrailOverride,
		ResourceID: "d1",
		Actor:      "analyst-7",
		Payload:    []byte(`{"reason":"manual review confirmed"}`),
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.AppendEntry(context.Background(), entry))

	require.Len(t, tx.queries, 1)
	assert.True(t, strings.HasPrefix(tx.queries[0], "INSERT INTO provenance_entries"))
	assert.Contains(t, tx.args[0], "entry-1")
	assert.Contains(t, tx.args[0], provenance.ActionGuardrailOverride)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
}

func TestAppendEntryFillsDefaults(t *testing.T) {
	tx := &fakeTx{}
	repo := NewRepository(&fakeDB{tx: tx}, testLogger())

	require.NoError(t, repo.AppendEntry(context.Background(), provenance.Entry{
		TenantID:   "t1",
		ActionType: provenance.ActionGuardrailOverride,
	}))

	require.Len(t, tx.args, 1)
	id, ok := tx.args[0][0].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)

	createdAt, ok := tx.args[0][6].(time.Time)
	require.True(t, ok)
	assert.False(t, createdAt.IsZero())
}

func TestAppendEntryExecErrorDoesNotCommit(t *testing.T) {
	tx := &fakeTx{execErr: errors.New("connection reset")}
	repo := NewRepository(&fakeDB{tx: tx}, testLogger())

	err := repo.AppendEntry(context.Background(), provenance.Entry{TenantID: "t1"})
	require.Error(t, err)

	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestAppendEntryTxBeginError(t *testing.T) {
	repo := NewRepository(&fakeDB{txErr: errors.New("pool exhausted")}, testLogger())

	err := repo.AppendEntry(context.Background(), provenance.Entry{TenantID: "t1"})
	require.Error(t, err)
}
