package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

// mockExecutor はExecutorのモック実装。
// テストではPostgreSQLを使わず、SQLクエリの内容と引数を検証する。
type mockExecutor struct {
	mu     sync.Mutex
	calls  int
	query  string
	args   []interface{}
	result sql.Result
	err    error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.query = query
	m.args = args
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogField はJSONログの各行からkeyの値を探す。
func findLogField(buf *bytes.Buffer, key string) (interface{}, bool) {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if v, ok := entry[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func TestCleanupJob_Run_ExecutesDeleteQuery(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 5}}
	job := NewCleanupJob(mock, 30*time.Second, newTestLogger(&buf))

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if mock.callCount() != 1 {
		t.Fatal("ExecContext が呼び出されなかった")
	}
	if !strings.Contains(mock.query, "DELETE FROM ip_addresses") {
		t.Errorf("クエリに 'DELETE FROM ip_addresses' が含まれていない: %s", mock.query)
	}
	if !strings.Contains(mock.query, "creation_date") {
		t.Errorf("クエリに 'creation_date' 条件が含まれていない: %s", mock.query)
	}
}

func TestCleanupJob_Run_PassesWindowSeconds(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, 90*time.Second, newTestLogger(&buf))

	_ = job.Run(context.Background())

	if len(mock.args) != 1 {
		t.Fatalf("ExecContext の引数の数 = %d, want 1", len(mock.args))
	}
	secs, ok := mock.args[0].(float64)
	if !ok {
		t.Fatalf("第1引数が float64 ではない: %T", mock.args[0])
	}
	if secs != 90 {
		t.Errorf("window引数 = %v, want 90", secs)
	}
}

func TestCleanupJob_Run_LogsDeletedCount(t *testing.T) {
	for _, n := range []int64{0, 42} {
		var buf bytes.Buffer
		mock := &mockExecutor{result: &fakeResult{rowsAffected: n}}
		job := NewCleanupJob(mock, 30*time.Second, newTestLogger(&buf))

		_ = job.Run(context.Background())

		count, ok := findLogField(&buf, "deleted_count")
		if !ok || count != float64(n) {
			t.Errorf("ログに deleted_count=%d が記録されていない。ログ出力: %s", n, buf.String())
		}
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := NewCleanupJob(mock, 30*time.Second, newTestLogger(&buf))

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(err.Error(), "sql: connection is already closed") {
		t.Errorf("エラーメッセージが期待と異なる: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewCleanupJob(mock, 30*time.Second, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for mock.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Start は起動直後に Run を実行すべき")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start はキャンセル後に終了すべき")
	}
}

func TestCleanupJob_Start_KeepsRunningAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{err: sql.ErrConnDone}
	job := NewCleanupJob(mock, 30*time.Second, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go job.Start(ctx, 10*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for mock.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("失敗後も周期実行が続くべき (calls=%d)", mock.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
