// Package seed loads the reference catalog (benefit types, document
// templates and the bootstrap administrator) and writes it idempotently.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/hris-api/internal/models"
)

//go:embed default.yaml
var defaultCatalog []byte

// Admin is the bootstrap SUPERADMIN account.
type Admin struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Password string `yaml:"password"`
}

// BenefitType is one catalog entry.
type BenefitType struct {
	Name                string `yaml:"name"`
	Description         string `yaml:"description"`
	MaxValue            int64  `yaml:"max_value"`
	RequiresBODApproval bool   `yaml:"requires_bod_approval"`
	Inactive            bool   `yaml:"inactive"`
}

// Catalog is the document read from YAML.
type Catalog struct {
	Admin        *Admin                    `yaml:"admin"`
	BenefitTypes []BenefitType             `yaml:"benefit_types"`
	Templates    []models.DocumentTemplate `yaml:"templates"`
}

// Result counts what Apply wrote.
type Result struct {
	Admin        bool
	BenefitTypes int
	Templates    int
}

type benefitTypeWriter interface {
	UpsertTypeByName(ctx context.Context, bt *models.BenefitType) error
}

type templateWriter interface {
	Upsert(ctx context.Context, tpl *models.DocumentTemplate) error
}

type userWriter interface {
	UpsertByEmail(ctx context.Context, user *models.User) error
}

// Stores are the repositories the seeder writes through.
type Stores struct {
	BenefitTypes benefitTypeWriter
	Templates    templateWriter
	Users        userWriter
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog.
func Parse(raw []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(c.BenefitTypes))
	for i, bt := range c.BenefitTypes {
		name := strings.TrimSpace(bt.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("benefit_types[%d]: name is required", i))
			continue
		}
		if _, dup := seen[strings.ToLower(name)]; dup {
			errs = append(errs, fmt.Errorf("benefit_types[%d]: duplicate name %q", i, name))
		}
		seen[strings.ToLower(name)] = struct{}{}
		if bt.MaxValue <= 0 {
			errs = append(errs, fmt.Errorf("benefit_types[%d]: max_value must be positive", i))
		}
	}
	for i, tpl := range c.Templates {
		switch tpl.Kind {
		case models.DocumentCOE, models.DocumentPAN:
		default:
			errs = append(errs, fmt.Errorf("templates[%d]: unknown kind %q", i, tpl.Kind))
		}
		if strings.TrimSpace(tpl.Body) == "" {
			errs = append(errs, fmt.Errorf("templates[%d]: body is required", i))
		}
	}
	if c.Admin != nil && (c.Admin.Email == "" || len(c.Admin.Password) < 8) {
		errs = append(errs, errors.New("admin: email and a password of at least 8 characters are required"))
	}
	return errors.Join(errs...)
}

// Apply upserts every catalog entry. Re-running it is safe.
func Apply(ctx context.Context, cat *Catalog, stores Stores, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result

	for _, entry := range cat.BenefitTypes {
		bt := &models.BenefitType{
			Name:                strings.TrimSpace(entry.Name),
			Description:         entry.Description,
			MaxValue:            entry.MaxValue,
			RequiresBODApproval: entry.RequiresBODApproval,
			Active:              !entry.Inactive,
		}
		if err := stores.BenefitTypes.UpsertTypeByName(ctx, bt); err != nil {
			return res, err
		}
		res.BenefitTypes++
	}

	for i := range cat.Templates {
		tpl := cat.Templates[i]
		if err := stores.Templates.Upsert(ctx, &tpl); err != nil {
			return res, err
		}
		res.Templates++
	}

	if cat.Admin != nil && stores.Users != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(cat.Admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return res, fmt.Errorf("hash admin password: %w", err)
		}
		admin := &models.User{
			Email:        cat.Admin.Email,
			FullName:     cat.Admin.FullName,
			PasswordHash: string(hash),
			Role:         models.RoleSuperAdmin,
			Active:       true,
		}
		if err := stores.Users.UpsertByEmail(ctx, admin); err != nil {
			return res, err
		}
		res.Admin = true
		logger.Info("seeded administrator", zap.String("email", admin.Email))
	}

	logger.Info("seed catalog applied",
		zap.Int("benefit_types", res.BenefitTypes),
		zap.Int("templates", res.Templates))
	return res, nil
}
