package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/database"
	"github.com/Wikid82/equiptrack/internal/models"
)

// setupTestDB opens a private in-memory database for the calling test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixture is a seeded company with one user per role.
type fixture struct {
	db         *gorm.DB
	clock      *testClock
	companyID  uint
	admin      models.User
	alice      models.User
	bob        models.User
	supervisor models.User

	locks     *LockService
	equipment *EquipmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	seeded, err := NewSeedService(db).Seed(context.Background())
	require.NoError(t, err)

	f := &fixture{db: db, clock: newTestClock(), companyID: seeded.CompanyID}
	require.NoError(t, db.Where("email = ?", DefaultAdminEmail).First(&f.admin).Error)
	f.alice = createTestUser(t, db, f.companyID, "alice@example.com", "Alice", models.RoleEmployee)
	f.bob = createTestUser(t, db, f.companyID, "bob@example.com", "Bob", models.RoleEmployee)
	f.supervisor = createTestUser(t, db, f.companyID, "sam@example.com", "Sam", models.RoleSupervisor)

	f.locks = NewLockService(db, DefaultLockTimeout)
	f.locks.now = f.clock.Now
	f.equipment = NewEquipmentService(db, f.locks)
	return f
}

func createTestUser(t *testing.T, db *gorm.DB, companyID uint, email, name string, role models.Role) models.User {
	t.Helper()
	u := models.User{CompanyID: companyID, Email: email, Name: name, Role: role, Enabled: true}
	require.NoError(t, u.SetPassword("password123"))
	require.NoError(t, db.Create(&u).Error)
	return u
}

func createTestCompany(t *testing.T, db *gorm.DB, name string) models.Company {
	t.Helper()
	c := models.Company{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func actorOf(u models.User) Actor {
	return ActorFromUser(&u, "127.0.0.1")
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func str(s string) *string { return &s }

func num(n int) *int { return &n }
