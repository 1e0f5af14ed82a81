package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"github.com/jackc/pgx/v5"
)

/* ---------- 記憶體版 store ---------- */

// memStore 以 map 模擬 store 套件；InsertAssignment / UpdateAssignment
// 與資料庫的部分唯一索引一樣拒絕同一把鑰匙的第二筆未歸還紀錄
type memStore struct {
	mu          sync.Mutex
	users       map[int64]model.User
	keys        map[string]model.Key
	assignments map[int64]model.Assignment
	nextUserID  int64
	nextAssign  int64

	// txMu 非 nil 時整個交易序列化，模擬 FOR UPDATE 排隊
	txMu *sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]model.User{},
		keys:        map[string]model.Key{},
		assignments: map[int64]model.Assignment{},
	}
}

func notFound(what string) error {
	return apperr.New(apperr.KindNotFound, "%s not found", what)
}

// installMemStore 把所有 store 函式變數換成 m 的實作，測試結束時還原
func installMemStore(t *testing.T, m *memStore) {
	t.Helper()
	saved := []func(){}
	save := func(restore func()) { saved = append(saved, restore) }

	{
		old := getUserByUsername
		save(func() { getUserByUsername = old })
		oldID := getUserByID
		save(func() { getUserByID = oldID })
		oldList := listUsers
		save(func() { listUsers = oldList })
		oldCreate := createUser
		save(func() { createUser = oldCreate })
		oldUpdate := updateUser
		save(func() { updateUser = oldUpdate })
		oldPwd := updateUserPassword
		save(func() { updateUserPassword = oldPwd })
		oldDel := deleteUser
		save(func() { deleteUser = oldDel })
		oldLock := lockActiveAdmins
		save(func() { lockActiveAdmins = oldLock })
		oldCount := countActiveAdmins
		save(func() { countActiveAdmins = oldCount })
		oldBoot := acquireBootstrapLock
		save(func() { acquireBootstrapLock = oldBoot })
		oldGetKey := getKey
		save(func() { getKey = oldGetKey })
		oldListKeys := listKeys
		save(func() { listKeys = oldListKeys })
		oldCreateKey := createKey
		save(func() { createKey = oldCreateKey })
		oldUpdateKey := updateKey
		save(func() { updateKey = oldUpdateKey })
		oldDeleteKey := deleteKey
		save(func() { deleteKey = oldDeleteKey })
		oldGetA := getAssignment
		save(func() { getAssignment = oldGetA })
		oldFind := findOpenAssignmentForKey
		save(func() { findOpenAssignmentForKey = oldFind })
		oldCountOpen := countOpenAssignmentsForUser
		save(func() { countOpenAssignmentsForUser = oldCountOpen })
		oldInsert := insertAssignment
		save(func() { insertAssignment = oldInsert })
		oldUpdateA := updateAssignment
		save(func() { updateAssignment = oldUpdateA })
		oldDeleteA := deleteAssignment
		save(func() { deleteAssignment = oldDeleteA })
		oldListA := listAssignments
		save(func() { listAssignments = oldListA })
		oldTx := withTx
		save(func() { withTx = oldTx })
	}
	t.Cleanup(func() {
		for _, restore := range saved {
			restore()
		}
	})

	getUserByUsername = m.getUserByUsername
	getUserByID = m.getUserByID
	listUsers = m.listUsers
	createUser = m.createUser
	updateUser = m.updateUser
	updateUserPassword = m.updateUserPassword
	deleteUser = m.deleteUser
	lockActiveAdmins = m.lockActiveAdmins
	countActiveAdmins = m.countActiveAdmins
	acquireBootstrapLock = func(context.Context, database.Querier) error { return nil }
	getKey = m.getKey
	listKeys = m.listKeys
	createKey = m.createKey
	updateKey = m.updateKey
	deleteKey = m.deleteKey
	getAssignment = m.getAssignment
	findOpenAssignmentForKey = m.findOpenAssignmentForKey
	countOpenAssignmentsForUser = m.countOpenAssignmentsForUser
	insertAssignment = m.insertAssignment
	updateAssignment = m.updateAssignment
	deleteAssignment = m.deleteAssignment
	listAssignments = m.listAssignments
	withTx = func(ctx context.Context, db database.DB, opts pgx.TxOptions, fn func(tx database.Querier) error) error {
		if m.txMu != nil {
			m.txMu.Lock()
			defer m.txMu.Unlock()
		}
		return database.WithTx(ctx, db, opts, fn)
	}
}

func (m *memStore) findUser(username string) (model.User, bool) {
	for _, u := range m.users {
		if u.Username == username {
			return u, true
		}
	}
	return model.User{}, false
}

func (m *memStore) withUsername(a model.Assignment) model.Assignment {
	a.Username = m.users[a.UserID].Username
	return a
}

func (m *memStore) getUserByUsername(_ context.Context, _ database.Querier, username string, _ store.Lock) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.findUser(username)
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (m *memStore) getUserByID(_ context.Context, _ database.Querier, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (m *memStore) listUsers(context.Context, database.Querier) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := []model.User{}
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *memStore) createUser(_ context.Context, _ database.Querier, u *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findUser(u.Username); ok {
		return nil, &apperr.Error{Kind: apperr.KindConflict, Subject: "user", Msg: "duplicate user"}
	}
	m.nextUserID++
	u.ID = m.nextUserID
	u.CreatedAt = time.Now()
	m.users[u.ID] = *u
	return u, nil
}

func (m *memStore) updateUser(_ context.Context, _ database.Querier, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return notFound("user")
	}
	cur.DisplayName, cur.Email, cur.CanLogin, cur.Admin = u.DisplayName, u.Email, u.CanLogin, u.Admin
	m.users[u.ID] = cur
	return nil
}

func (m *memStore) updateUserPassword(_ context.Context, _ database.Querier, id int64, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[id]
	if !ok {
		return notFound("user")
	}
	cur.PasswordDigest = &digest
	m.users[id] = cur
	return nil
}

func (m *memStore) deleteUser(_ context.Context, _ database.Querier, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFound("user")
	}
	delete(m.users, id)
	for aid, a := range m.assignments {
		if a.UserID == id {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *memStore) lockActiveAdmins(context.Context, database.Querier) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for id, u := range m.users {
		if u.IsActiveAdmin() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) countActiveAdmins(ctx context.Context, db database.Querier) (int, error) {
	ids, err := m.lockActiveAdmins(ctx, db)
	return len(ids), err
}

func (m *memStore) getKey(_ context.Context, _ database.Querier, name string, _ store.Lock) (*model.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[name]
	if !ok {
		return nil, notFound("key")
	}
	return &k, nil
}

func (m *memStore) listKeys(context.Context, database.Querier) ([]model.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []model.Key{}
	for _, k := range m.keys {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys, nil
}

func (m *memStore) createKey(_ context.Context, _ database.Querier, k *model.Key) (*model.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[k.Name]; ok {
		return nil, &apperr.Error{Kind: apperr.KindConflict, Subject: "key", Msg: "duplicate key"}
	}
	k.CreatedAt = time.Now()
	m.keys[k.Name] = *k
	return k, nil
}

func (m *memStore) updateKey(_ context.Context, _ database.Querier, name string, k *model.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.keys[name]
	if !ok {
		return notFound("key")
	}
	if k.Name != name {
		if _, taken := m.keys[k.Name]; taken {
			return &apperr.Error{Kind: apperr.KindConflict, Subject: "key", Msg: "duplicate key"}
		}
		delete(m.keys, name)
		for id, a := range m.assignments {
			if a.KeyName == name {
				a.KeyName = k.Name
				m.assignments[id] = a
			}
		}
	}
	cur.Name, cur.Description, cur.Active = k.Name, k.Description, k.Active
	m.keys[k.Name] = cur
	return nil
}

func (m *memStore) deleteKey(_ context.Context, _ database.Querier, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; !ok {
		return notFound("key")
	}
	delete(m.keys, name)
	for id, a := range m.assignments {
		if a.KeyName == name {
			delete(m.assignments, id)
		}
	}
	return nil
}

func (m *memStore) getAssignment(_ context.Context, _ database.Querier, id int64, _ store.Lock) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, notFound("assignment")
	}
	a = m.withUsername(a)
	return &a, nil
}

func (m *memStore) openFor(keyName string) (model.Assignment, bool) {
	for _, a := range m.assignments {
		if a.KeyName == keyName && a.Open() {
			return a, true
		}
	}
	return model.Assignment{}, false
}

func (m *memStore) findOpenAssignmentForKey(_ context.Context, _ database.Querier, keyName string) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.openFor(keyName)
	if !ok {
		return nil, nil
	}
	a = m.withUsername(a)
	return &a, nil
}

func (m *memStore) countOpenAssignmentsForUser(_ context.Context, _ database.Querier, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.assignments {
		if a.UserID == userID && a.Open() {
			n++
		}
	}
	return n, nil
}

func (m *memStore) insertAssignment(_ context.Context, _ database.Querier, userID int64, keyName string, dateOut time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return 0, apperr.Referential("user", "user does not exist")
	}
	if _, ok := m.keys[keyName]; !ok {
		return 0, apperr.Referential("key", "key does not exist")
	}
	if _, ok := m.openFor(keyName); ok {
		return 0, &apperr.Error{Kind: apperr.KindConflict, Subject: "assignment", Msg: "duplicate assignment"}
	}
	m.nextAssign++
	m.assignments[m.nextAssign] = model.Assignment{ID: m.nextAssign, UserID: userID, KeyName: keyName, DateOut: dateOut}
	return m.nextAssign, nil
}

func (m *memStore) updateAssignment(_ context.Context, _ database.Querier, a *model.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return notFound("assignment")
	}
	if a.Open() {
		if other, ok := m.openFor(a.KeyName); ok && other.ID != a.ID {
			return &apperr.Error{Kind: apperr.KindConflict, Subject: "assignment", Msg: "duplicate assignment"}
		}
	}
	stored := *a
	stored.Username = ""
	m.assignments[a.ID] = stored
	return nil
}

func (m *memStore) deleteAssignment(_ context.Context, _ database.Querier, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[id]; !ok {
		return notFound("assignment")
	}
	delete(m.assignments, id)
	return nil
}

func (m *memStore) listAssignments(_ context.Context, _ database.Querier, opts model.ListOptions) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []model.Assignment{}
	for _, a := range m.assignments {
		if opts.OpenOnly && !a.Open() {
			continue
		}
		list = append(list, m.withUsername(a))
	}
	var less func(a, b model.Assignment) bool
	switch opts.Sort {
	case "", model.SortNone:
		less = func(a, b model.Assignment) bool { return a.ID < b.ID }
	case model.SortByUser:
		less = func(a, b model.Assignment) bool {
			if a.Username != b.Username {
				return a.Username < b.Username
			}
			return a.ID < b.ID
		}
	case model.SortByKey:
		less = func(a, b model.Assignment) bool {
			if a.KeyName != b.KeyName {
				return a.KeyName < b.KeyName
			}
			return a.ID < b.ID
		}
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown sort option %q", opts.Sort)
	}
	sort.Slice(list, func(i, j int) bool { return less(list[i], list[j]) })
	return list, nil
}
