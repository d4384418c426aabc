package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/repository/memory"
)

const (
	staffID = int32(900)
	day     = 24 * time.Hour
)

var day0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	ctx   context.Context
	store *memory.Store
	plan  *domain.MembershipPlan
}

// newFixture seeds a plan allowing two books for 14 days at 25 cents a day.
func newFixture(t *testing.T, maxRenewals int32) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.New()}
	f.plan = &domain.MembershipPlan{
		Name:               "Two Books",
		MaxBooks:           2,
		LoanDuration:       14 * day,
		LateFeePerDayCents: 25,
		MaxRenewals:        maxRenewals,
	}
	require.NoError(t, f.store.Plans().Create(f.ctx, f.plan))
	return f
}

func (f *fixture) patron(t *testing.T, name string) *domain.Patron {
	t.Helper()
	p := &domain.Patron{Name: name, Email: name + "@example.org", PlanID: f.plan.ID, Status: domain.PatronStatusActive}
	require.NoError(t, f.store.Patrons().Create(f.ctx, p))
	return p
}

func (f *fixture) item(t *testing.T, barcode string) *domain.Item {
	t.Helper()
	it := &domain.Item{Barcode: barcode, Title: "Title " + barcode, Condition: domain.ItemConditionGood, Status: domain.ItemStatusAvailable}
	require.NoError(t, f.store.Items().Create(f.ctx, it))
	return it
}

func (f *fixture) audit(t *testing.T, entity domain.EntityType, id int32) []domain.AuditEntry {
	t.Helper()
	entries, err := f.store.Audit().ListByEntity(f.ctx, entity, id)
	require.NoError(t, err)
	return entries
}

func (f *fixture) outbox(t *testing.T) []domain.Notification {
	t.Helper()
	pending, err := f.store.Notifications().ListUndelivered(f.ctx, 0)
	require.NoError(t, err)
	return pending
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendNotification(ctx context.Context, toEmail, toName string, n *domain.Notification) error {
	args := m.Called(ctx, toEmail, toName, n)
	return args.Error(0)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	m.Called(operation, err, duration)
}

func (m *MockMetrics) RecordHTTPStatus(route string, statusCode int) {
	m.Called(route, statusCode)
}

func (m *MockMetrics) RecordDispatch(outcome string) {
	m.Called(outcome)
}
