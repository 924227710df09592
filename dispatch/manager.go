package dispatch

import (
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/iscada/tabledb/dbcrypto"
	"github.com/iscada/tabledb/syncx"
	"github.com/iscada/tabledb/table"
)

// Poster delivers completion callbacks onto a designated dispatch context
// (an event loop, a test pump). A nil poster invokes callbacks inline on the
// worker that ran the task.
type Poster func(fn func())

type ManagerConfig struct {
	Path    string
	Workers int

	Poster Poster

	// Key overrides the built-in AES key; must be 16 bytes when set.
	Key []byte
}

// Manager owns the worker pool and dispatches tasks against one table.
// Per-table operations serialize through the table's two recursive locks;
// managers over distinct tables are independent.
type Manager struct {
	config ManagerConfig

	table    *table.DynamicTable
	ownTable bool

	baseFields []table.FieldDef

	cipher *dbcrypto.Cipher

	initialized bool

	tasksQueue chan task
	workersWg  sync.WaitGroup

	taskLocker    sync.Mutex
	taskCondition *sync.Cond
	pendingTasks  int

	scratch *FixedSizeBufferPool
}

type task interface {
	run(m *Manager)
}

// defaultFields is the schema used when the manager creates its own table:
// {id:int32, name:string(FSL), score:float32}.
func defaultFields() []table.FieldDef {
	return []table.FieldDef{
		{Type: table.IntFieldType, ValueLen: 4, Name: "id"},
		{Type: table.StringFieldType, ValueLen: table.FixedStringLength, Name: "name"},
		{Type: table.FloatFieldType, ValueLen: 4, Name: "score"},
	}
}

func New(config ManagerConfig) *Manager {

	m := newManager(config)
	m.table = table.NewDynamicTable()
	m.ownTable = true
	m.baseFields = defaultFields()

	return m
}

// NewWithTable wraps an already-loaded table; InitOrLoad only verifies it.
func NewWithTable(tbl *table.DynamicTable, config ManagerConfig) *Manager {

	m := newManager(config)
	m.table = tbl
	m.ownTable = false
	m.baseFields = tbl.Header().Fields
	m.initialized = tbl.Loaded()

	return m
}

func newManager(config ManagerConfig) *Manager {

	workers := config.Workers
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	key := config.Key
	if key == nil {
		key = dbcrypto.DefaultKey
	}
	cipher, cipherErr := dbcrypto.New(key)
	if cipherErr != nil {
		panic("dispatch: " + cipherErr.Error())
	}

	m := &Manager{
		config:     config,
		cipher:     cipher,
		tasksQueue: make(chan task, 64),
		scratch:    NewFixedSizeBufferPool(workers*2, table.FixedStringLength),
	}
	m.taskCondition = sync.NewCond(&m.taskLocker)

	for i := 0; i < workers; i++ {
		m.workersWg.Add(1)
		go m.workerLoop(i)
	}

	slog.Info("worker pool started", "workers", workers)

	return m
}

func (m *Manager) workerLoop(threadId int) {

	defer m.workersWg.Done()

	slog.Debug("worker started", "thread_id", threadId)
	defer slog.Debug("worker stopped", "thread_id", threadId)

	for task := range m.tasksQueue {
		task.run(m)
	}
}

func (m *Manager) Table() *table.DynamicTable {
	return m.table
}

func (m *Manager) IsReady() bool {
	return m.initialized && m.table.Loaded()
}

// InitOrLoad brings the table up: loads the file when it exists, creates it
// with the default schema otherwise. Idempotent.
func (m *Manager) InitOrLoad() error {

	if !m.table.MetaLock().TryLock() {
		return syncx.ErrLockTimeout
	}
	defer m.table.MetaLock().Unlock()

	if m.initialized {
		return nil
	}

	if !m.ownTable {
		if !m.table.Loaded() {
			return table.ErrNotLoaded
		}
		m.initialized = true
		return nil
	}

	var bringupErr error
	if _, statErr := os.Stat(m.config.Path); statErr == nil {
		bringupErr = m.table.Load(m.config.Path)
	} else {
		bringupErr = m.table.Init(m.config.Path, m.baseFields)
	}

	if bringupErr != nil {
		slog.Error("table bring-up failed", "path", m.config.Path, "err", bringupErr.Error())
		return bringupErr
	}

	m.initialized = true
	return nil
}

func (m *Manager) incrementPendingTasks() {
	m.taskLocker.Lock()
	m.pendingTasks++
	m.taskLocker.Unlock()
}

func (m *Manager) decrementPendingTasks() {
	m.taskLocker.Lock()
	m.pendingTasks--
	if m.pendingTasks == 0 {
		m.taskCondition.Broadcast()
	}
	m.taskLocker.Unlock()
}

// WaitForAllTasks blocks until every submitted task has completed.
func (m *Manager) WaitForAllTasks() {
	m.taskLocker.Lock()
	for m.pendingTasks > 0 {
		m.taskCondition.Wait()
	}
	m.taskLocker.Unlock()
}

// postCallback routes fn onto the dispatch context, or runs it inline when
// none is configured.
func (m *Manager) postCallback(fn func()) {
	if m.config.Poster != nil {
		m.config.Poster(fn)
		return
	}
	fn()
}

func (m *Manager) submit(t task) {
	m.incrementPendingTasks()
	m.tasksQueue <- t
}

// Shutdown waits for in-flight tasks and stops the workers. The table stays
// open unless Close is used.
func (m *Manager) Shutdown() {
	m.WaitForAllTasks()
	close(m.tasksQueue)
	m.workersWg.Wait()
}

// Close shuts down the pool and closes an internally-owned table.
func (m *Manager) Close() {
	m.Shutdown()
	if m.ownTable {
		m.table.Close()
	}
}
