package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hris-api/internal/models"
)

type memoryStores struct {
	types     map[string]models.BenefitType
	templates map[models.DocumentKind]models.DocumentTemplate
	users     map[string]models.User
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		types:     map[string]models.BenefitType{},
		templates: map[models.DocumentKind]models.DocumentTemplate{},
		users:     map[string]models.User{},
	}
}

func (m *memoryStores) UpsertTypeByName(ctx context.Context, bt *models.BenefitType) error {
	m.types[bt.Name] = *bt
	return nil
}

func (m *memoryStores) Upsert(ctx context.Context, tpl *models.DocumentTemplate) error {
	m.templates[tpl.Kind] = *tpl
	return nil
}

func (m *memoryStores) UpsertByEmail(ctx context.Context, user *models.User) error {
	m.users[user.Email] = *user
	return nil
}

func TestDefaultCatalogApplies(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	stores := newMemoryStores()
	res, err := Apply(context.Background(), cat, Stores{BenefitTypes: stores, Templates: stores, Users: stores}, nil)
	require.NoError(t, err)

	assert.True(t, res.Admin)
	assert.Equal(t, len(cat.BenefitTypes), res.BenefitTypes)
	assert.Equal(t, 2, res.Templates)

	laptop, ok := stores.types["Laptop Allowance"]
	require.True(t, ok)
	assert.EqualValues(t, 50000, laptop.MaxValue)
	assert.True(t, laptop.RequiresBODApproval)
	assert.True(t, laptop.Active)

	assert.Contains(t, stores.templates[models.DocumentCOE].Body, "{{employee_name}}")

	admin := stores.users["admin@hris.local"]
	assert.Equal(t, models.RoleSuperAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(cat.Admin.Password)))
}

func TestParseRejectsInvalidCatalog(t *testing.T) {
	_, err := Parse([]byte(`
benefit_types:
  - name: Gym
    max_value: 0
  - name: gym
    max_value: 10
templates:
  - kind: PAYSLIP
    body: x
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_value must be positive")
	assert.Contains(t, err.Error(), "duplicate name")
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("benefit_types: [name: "))
	assert.Error(t, err)
}
